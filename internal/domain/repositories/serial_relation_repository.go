package repositories

import (
	"context"

	"bridge-settle.backend/internal/domain/entities"
)

// SerialRelationRepository persists the crash-recovery anchor described in
// spec §4.4/§9. Writes here are synchronous and deliberately outside the
// bridge-row transaction: they must survive even if the process dies
// immediately after broadcast.
type SerialRelationRepository interface {
	// Exists reports whether sourceID already has a serial record, used by
	// BatchSendTransactionByTransfer to filter out already-sent rows.
	Exists(ctx context.Context, sourceID string) (bool, error)
	// Save records the hash a broadcast was attempted under, for one or
	// many source ids sharing a single payout (batch case).
	Save(ctx context.Context, sourceIDs []string, sender, chain, token, targetHash string) error
	// GetByTargetHash recovers the source ids behind a payout hash.
	GetByTargetHash(ctx context.Context, targetHash string) ([]*entities.SerialRelation, error)
	// ListUnreconciled returns serial records whose bridge row is still at
	// StatusReadyPaid, used by the startup reconciler (spec §5).
	ListUnreconciled(ctx context.Context) ([]*entities.SerialRelation, error)
}
