package entities

import "time"

// TransferVersion identifies the bridge-protocol dialect a transfer was
// minted under and which side of a bridge trip it represents. The "-0"
// suffix is the user-to-maker deposit; "-1" is the maker-to-user payout.
type TransferVersion string

const (
	VersionV1Source TransferVersion = "1-0"
	VersionV1Dest   TransferVersion = "1-1"
	VersionV2Source TransferVersion = "2-0"
	VersionV2Dest   TransferVersion = "2-1"
)

// IsSource reports whether this version marks a user→maker deposit.
func (v TransferVersion) IsSource() bool {
	return v == VersionV1Source || v == VersionV2Source
}

// IsDest reports whether this version marks a maker→user payout.
func (v TransferVersion) IsDest() bool {
	return v == VersionV1Dest || v == VersionV2Dest
}

// IsV1 reports whether this transfer uses the V1 (calldata-encoded) dialect.
func (v TransferVersion) IsV1() bool {
	return v == VersionV1Source || v == VersionV1Dest
}

// TransferStatus mirrors the on-chain confirmation state of a Transfer row.
type TransferStatus int

const (
	TransferPending TransferStatus = 0
	TransferSuccess TransferStatus = 2
	TransferFailed  TransferStatus = 3
)

// Matcher progress sentinels recorded on a Transfer row's OpStatus.
const (
	OpStatusUnprocessed = 0
	OpStatusSourceBuilt = 1
	OpStatusMatched     = 99
	// OpStatusEvalError marks a source transfer the Rule Evaluator could
	// not price; the source sweep will not retry it automatically.
	OpStatusEvalError = -1
)

// Transfer is an already-decoded, immutable-after-ingest on-chain transfer
// row. It is produced by the chain event ingester (an external
// collaborator) and only ever read and status-flipped by this engine.
type Transfer struct {
	ID        int64
	Hash      string
	ChainID   string
	Sender    string
	Receiver  string
	Token     string
	Symbol    string
	Amount    string // decimal string
	Value     string // raw integer string; low 4 digits carry the security code
	Nonce     string
	Timestamp time.Time
	FeeAmount string
	FeeToken  string
	Version   TransferVersion
	Status    TransferStatus
	OpStatus  int
	// CallData is the hex-encoded deposit calldata for V1-dialect transfers,
	// already captured by the chain event ingester alongside the decoded
	// fields above. The V1 Rule Evaluator decodes the target chain id and
	// target address out of it (spec §4.1); V2 transfers never set it.
	CallData string
}
