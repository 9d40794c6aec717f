package entities

// TransferAmountTransaction is a transient unit of work in the InFlightSet:
// a source-side bridge transaction that has been matched and is waiting to
// be scheduled for payout by the Sequencer, grouped by (chain, token).
type TransferAmountTransaction struct {
	SourceID      string
	Chain         string // target chain: where the payout is sent
	Token         string // target token address
	Sender        string // signing account that will broadcast the payout
	Receiver      string
	Amount        string
	Symbol        string
	SourceChain   string
	SourceSymbol  string
}

// Key returns the InFlightSet grouping key for this work item.
func (t *TransferAmountTransaction) Key() string {
	return t.Chain + ":" + t.Token
}
