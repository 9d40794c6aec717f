package repositories

import (
	"context"

	"github.com/google/uuid"
	"bridge-settle.backend/internal/domain/entities"
)

// BridgeTransactionRepository persists BridgeTransaction rows. Every
// mutation that moves Status is expected to run inside a UnitOfWork
// transaction; row-count checks against the caller's expectations are the
// mechanism the Matcher and Sequencer use to detect lost races (spec §4.2,
// §4.3).
type BridgeTransactionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entities.BridgeTransaction, error)
	GetBySource(ctx context.Context, sourceChain, sourceID string) (*entities.BridgeTransaction, error)
	GetByTarget(ctx context.Context, targetChain, targetID string) (*entities.BridgeTransaction, error)
	// GetBySourceID looks up a row by SourceID alone, without the source
	// chain qualifier GetBySource requires. SourceID is globally unique
	// (ListUnreconciled's own join already relies on this), so the startup
	// reconciler -- which only has SerialRelation.Chain (the target chain)
	// and SourceID on hand -- uses this instead of GetBySource.
	GetBySourceID(ctx context.Context, sourceID string) (*entities.BridgeTransaction, error)

	// FindClosableByContent implements the destination sweep's content
	// match predicate: targetChain/targetSymbol/targetAddress/targetAmount
	// plus sender membership in ResponseMaker, restricted to closable
	// statuses and the time window destTs-120min <= sourceTs <= destTs+5min
	// (spec §4.2 step 2).
	FindClosableByContent(ctx context.Context, q ContentMatchQuery) (*entities.BridgeTransaction, error)

	// Upsert creates the row if (SourceChain,SourceID) is new, or updates
	// the derived fields if it exists and is not yet in-operation. Returns
	// (created, skipped, err); a no-op (skipped because in-operation) is not
	// an error, it is reported via the skipped return.
	Upsert(ctx context.Context, tx *entities.BridgeTransaction) (created bool, skipped bool, err error)

	// MarkReadyPaid flips Status 0 -> 90 for row id, asserting the prior
	// status == 0 and TargetID is empty. Returns ErrNotFound (via
	// RowsAffected==0) if the precondition doesn't hold, which the
	// Sequencer turns into TransactionSendIgError.
	MarkReadyPaid(ctx context.Context, id uuid.UUID) error
	// MarkReadyPaidBatch flips Status 0 -> 90 for all ids at once; the
	// caller must check the returned count against len(ids).
	MarkReadyPaidBatch(ctx context.Context, ids []uuid.UUID) (int64, error)

	// MarkPaidSuccess sets Status=95 and records the target hash and the
	// signer address that broadcast it, so the receipt-confirmation job can
	// later advance the row to 99 without needing the Account layer again.
	MarkPaidSuccess(ctx context.Context, id uuid.UUID, targetID, targetMaker string) error
	// MarkPaidCrash sets Status=98 and records the best-known target hash
	// and maker address.
	MarkPaidCrash(ctx context.Context, id uuid.UUID, targetID, targetMaker string) error
	// MarkSendFailed sets Status=97 from StatusReadyPaid, StatusPaidCrash,
	// or StatusPaidSuccess, used by the startup reconciler once it confirms
	// a crashed payout's transaction actually reverted on chain (spec §5),
	// and by the receipt-confirmation job when a broadcast it had marked
	// successful later turns out to have reverted.
	MarkSendFailed(ctx context.Context, id uuid.UUID, targetID string) error
	// RevertToCreated rolls a row back to Status=0 (pre-broadcast failure).
	RevertToCreated(ctx context.Context, id uuid.UUID) error
	// MarkBridgeSuccess sets Status=99 once a receipt is observed.
	MarkBridgeSuccess(ctx context.Context, id uuid.UUID, targetMaker string) error

	// CloseMatch is the destination sweep's terminal write: sets the
	// target-side fields, Status=99 (success) or 97 (failed), from
	// exactly one of the Closable statuses. Returns ErrNotFound if the row
	// moved out of a closable status concurrently (invariant 6).
	CloseMatch(ctx context.Context, id uuid.UUID, fields CloseFields) error

	// ListByStatus returns a page of rows at the given status, newest
	// first, plus the total row count at that status, for the admin
	// surface to page through (spec §6 operator surface).
	ListByStatus(ctx context.Context, status entities.BridgeStatus, offset, limit int) ([]*entities.BridgeTransaction, int64, error)
}

// ContentMatchQuery is the destination sweep's cache/DB lookup predicate.
type ContentMatchQuery struct {
	TargetChain    string
	TargetSymbol   string
	TargetAddress  string
	TargetAmount   string
	Sender         string
	DestTimestamp  int64 // unix seconds
}

// CloseFields are the target-side fields written when a dest-side
// transfer closes a bridge row.
type CloseFields struct {
	TargetID        string
	TargetTime      int64
	TargetFee       string
	TargetFeeSymbol string
	TargetNonce     string
	TargetMaker     string
	Success         bool
}
