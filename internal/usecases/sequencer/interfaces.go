// Package sequencer orchestrates payouts: it pops in-flight work from the
// Store, acquires the per-sender exclusive section, calls the Account
// layer, and drives the BridgeTransaction status machine (spec §4.3).
package sequencer

import (
	"context"

	"bridge-settle.backend/internal/domain/entities"
)

// SenderAccount is the signing/broadcast capability the Sequencer calls
// into. sourceIDs is threaded through so the implementation can persist
// the SerialRelation anchor before it ever risks a broadcast (spec §4.4).
type SenderAccount interface {
	Address() string
	Transfer(ctx context.Context, sourceIDs []string, to, amount string) (txHash string, err error)
	TransferToken(ctx context.Context, sourceIDs []string, token, to, amount string) (txHash string, err error)
	Transfers(ctx context.Context, sourceIDs []string, tos, amounts []string) (txHash string, err error)
	TransferTokens(ctx context.Context, sourceIDs []string, token string, tos, amounts []string) (txHash string, err error)
	WaitForTransactionConfirmation(ctx context.Context, txHash string) (*Receipt, error)
}

// Receipt is the Sequencer's view of a mined transaction outcome.
type Receipt struct {
	Success bool
	From    string
}

// AccountResolver maps a (chain, sender) pair to the signing account that
// should broadcast on its behalf.
type AccountResolver interface {
	Resolve(chain, sender string) (SenderAccount, error)
}

// StoreOps is the subset of store.Store the Sequencer depends on,
// resolving the sequencer<->store<->account cyclic dependency per
// spec §9's design note.
type StoreOps interface {
	GetSerialRecord(ctx context.Context, sourceID string) (bool, error)
	RemoveTransactionAndSetSerial(ctx context.Context, key string, txs []*entities.TransferAmountTransaction, sender, chain, token, targetHash string) (rollback func(), err error)
}

// Exclusivity runs fn while holding the per-sender exclusive section.
type Exclusivity interface {
	RunExclusive(ctx context.Context, sender string, fn func(ctx context.Context) error) error
}

// Alerts is the one-shot alert sink (spec §6).
type Alerts interface {
	Alert(ctx context.Context, text string, channels ...string) error
}
