package repositories

import (
	"context"
	"time"

	"bridge-settle.backend/internal/domain/entities"
)

// TransferRepository reads and flips status on the Transfers table. The
// table itself is populated by the chain event ingester, an external
// collaborator out of scope for this engine (spec §1); this engine only
// ever reads rows and sets OpStatus/Status on the two it matched.
type TransferRepository interface {
	// FindSourceCandidates selects up to limit unprocessed source-side
	// transfers newer than since, ordered by id desc (spec §4.2).
	FindSourceCandidates(ctx context.Context, versions []entities.TransferVersion, since time.Time, limit int) ([]*entities.Transfer, error)
	// FindDestCandidates selects unprocessed destination-side transfers
	// regardless of success/failure (spec §4.2).
	FindDestCandidates(ctx context.Context, versions []entities.TransferVersion, limit int) ([]*entities.Transfer, error)
	// GetByChainAndHash looks up a single transfer for idempotence checks.
	GetByChainAndHash(ctx context.Context, chainID, hash string) (*entities.Transfer, error)
	// SetOpStatus flips a single transfer's matcher-progress sentinel.
	SetOpStatus(ctx context.Context, chainID, hash string, opStatus int) error
	// SetOpStatusMatchedBoth flips OpStatus=matched on exactly the source
	// and destination rows, inside the caller's transaction. Must affect
	// exactly 2 rows or return an error (spec §4.2 step 3, invariant 5).
	SetOpStatusMatchedBoth(ctx context.Context, sourceChain, sourceHash, destChain, destHash string, opStatus int) error
}
