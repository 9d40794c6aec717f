package entities

import "math/big"

// RuleSide holds the fee parameters configured for one side of a chain
// pair. The rule graph provider (mdc/manager, an external collaborator)
// hands these back keyed by (sourceChainID, targetChainID, sourceSymbol,
// targetSymbol); which side's fields are "ours" depends on which chain the
// inbound transfer actually arrived on (spec §4.1 step 5).
type RuleSide struct {
	TradeFeeBps      int64 // chain_N_trade_fee, in basis points (bps/10000)
	WithholdingFee   *big.Int
	MinPrice         *big.Int // parsed and retained; never enforced (policy)
	MaxPrice         *big.Int
	ResponseMakers   []string
}

// Rule is the flattened rule record resolved for a single security code:
// dealer, EBC, and the two chains' fee configuration.
type Rule struct {
	ID            string
	DealerID      string
	DealerAddress string
	EBCID         string
	EBCAddress    string
	Chain0        string
	Chain1        string
	Side0         RuleSide
	Side1         RuleSide
}

// SideFor returns the RuleSide that applies given the chain the source
// transfer actually arrived on.
func (r *Rule) SideFor(sourceChainID string) RuleSide {
	if r.Chain0 == sourceChainID {
		return r.Side0
	}
	return r.Side1
}

// SecurityCode is the decoded low-4-digits of a deposit's raw value.
type SecurityCode struct {
	DealerID           int
	EBCID              int
	TargetChainIDIndex int
}

// EvaluatedPayout is the Rule Evaluator's deterministic output for one
// source Transfer: the derived payout amount and the metadata needed to
// build a BridgeTransaction row.
type EvaluatedPayout struct {
	RuleID         string
	EBCAddress     string
	DealerAddress  string
	TargetChain    string
	TargetToken    string
	TargetSymbol   string
	WithholdingFee string
	TradeFee       string
	ResponseAmount string // decimal string, safety-code spliced into low 4 digits
	ResponseMaker  []string
}
