package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BridgeStatus is the status machine driving a BridgeTransaction from
// creation through payout to settlement. See spec §3 for the full
// transition table; REDESIGN decision: PAID_SUCCESS is numbered 95 (not
// 98) so that 98 is reserved exclusively for PAID_CRASH — see DESIGN.md.
type BridgeStatus int

const (
	// StatusCreated: row created, awaiting payout.
	StatusCreated BridgeStatus = 0
	// StatusReadyPaid: DB lock held, payout being attempted.
	StatusReadyPaid BridgeStatus = 90
	// StatusPaidSuccess: broadcast accepted, awaiting receipt.
	StatusPaidSuccess BridgeStatus = 95
	// StatusSendFailed: payout broadcast but the on-chain tx reverted/failed.
	StatusSendFailed BridgeStatus = 97
	// StatusPaidCrash: broadcast crashed after some side effect landed.
	StatusPaidCrash BridgeStatus = 98
	// StatusBridgeSuccess: receipt observed and matched. Terminal.
	StatusBridgeSuccess BridgeStatus = 99
)

// Closable is the destination-sweep eligibility set: a bridge row
// can be closed by a dest-side match only while in one of these states.
func (s BridgeStatus) Closable() bool {
	return s == StatusCreated || s == StatusSendFailed || s == StatusPaidCrash
}

// InOperation reports whether the row is held by an in-flight payout and
// must never be rebuilt by a source sweep.
func (s BridgeStatus) InOperation() bool {
	return s >= StatusReadyPaid
}

// BridgeTransaction is the durable match record pairing a source-chain
// deposit with its destination-chain payout obligation. Its logical
// identity is (SourceChain, SourceID); Status is monotonic except for the
// 0 → 90 → {0|97|98|99} transitions spec.md §4.3 details.
type BridgeTransaction struct {
	ID uuid.UUID

	SourceChain   string
	SourceID      string
	SourceAddress string
	SourceMaker   string
	SourceAmount  string
	SourceSymbol  string
	SourceToken   string
	SourceNonce   string
	SourceTime    time.Time

	TargetChain     string
	TargetID        string
	TargetAddress   string
	TargetAmount    string
	TargetSymbol    string
	TargetToken     string
	TargetMaker     string
	TargetTime      *time.Time
	TargetNonce     string
	TargetFee       string
	TargetFeeSymbol string

	RuleID          string
	EBCAddress      string
	DealerAddress   string
	WithholdingFee  string
	TradeFee        string
	ResponseMaker   []string

	Status BridgeStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasResponder reports whether addr (any case) is permitted to fulfil
// this bridge row.
func (b *BridgeTransaction) HasResponder(addr string) bool {
	for _, m := range b.ResponseMaker {
		if strings.EqualFold(m, addr) {
			return true
		}
	}
	return false
}
