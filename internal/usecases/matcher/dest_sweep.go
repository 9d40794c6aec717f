package matcher

import (
	"context"

	"go.uber.org/zap"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/pkg/logger"
)

// DestSweep is the periodic task that closes a BridgeTransaction once the
// maker's outbound payout transfer is observed on the target chain
// (spec §4.2).
type DestSweep struct {
	transfers domainrepos.TransferRepository
	bridgeTx  domainrepos.BridgeTransactionRepository
	uow       domainrepos.UnitOfWork
	cache     *MemoryMatchCache

	versions []entities.TransferVersion
	limit    int
}

func NewDestSweep(
	transfers domainrepos.TransferRepository,
	bridgeTx domainrepos.BridgeTransactionRepository,
	uow domainrepos.UnitOfWork,
	cache *MemoryMatchCache,
	versions []entities.TransferVersion,
	limit int,
) *DestSweep {
	return &DestSweep{transfers: transfers, bridgeTx: bridgeTx, uow: uow, cache: cache, versions: versions, limit: limit}
}

// Run executes one sweep pass, returning the count of rows closed.
func (d *DestSweep) Run(ctx context.Context) (int, error) {
	candidates, err := d.transfers.FindDestCandidates(ctx, d.versions, d.limit)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, t := range candidates {
		if d.processOne(ctx, t) {
			closed++
		}
	}
	return closed, nil
}

func (d *DestSweep) processOne(ctx context.Context, t *entities.Transfer) bool {
	var bt *entities.BridgeTransaction

	if id, ok := d.cache.FindBridgeRow(t.ChainID, t.Symbol, t.Receiver, t.Amount, t.Sender, t.Timestamp); ok {
		row, err := d.bridgeTx.GetByID(ctx, id)
		if err == nil && row.Status.Closable() {
			bt = row
		}
	}

	if bt == nil {
		row, err := d.bridgeTx.FindClosableByContent(ctx, domainrepos.ContentMatchQuery{
			TargetChain:   t.ChainID,
			TargetSymbol:  t.Symbol,
			TargetAddress: t.Receiver,
			TargetAmount:  t.Amount,
			Sender:        t.Sender,
			DestTimestamp: t.Timestamp.Unix(),
		})
		if err != nil {
			if err != domainerrors.ErrNotFound {
				logger.Error(ctx, "dest sweep: content lookup failed", zap.String("hash", t.Hash), zap.Error(err))
			}
			d.cache.PutPendingDest(t)
			return false
		}
		bt = row
	}

	success := t.Status == entities.TransferSuccess
	fields := domainrepos.CloseFields{
		TargetID:        t.Hash,
		TargetTime:      t.Timestamp.Unix(),
		TargetFee:       t.FeeAmount,
		TargetFeeSymbol: t.FeeToken,
		TargetNonce:     t.Nonce,
		TargetMaker:     t.Sender,
		Success:         success,
	}

	txErr := d.uow.Do(ctx, func(ctx context.Context) error {
		if err := d.bridgeTx.CloseMatch(ctx, bt.ID, fields); err != nil {
			return err
		}
		return d.transfers.SetOpStatusMatchedBoth(ctx, bt.SourceChain, bt.SourceID, t.ChainID, t.Hash, entities.OpStatusMatched)
	})
	if txErr != nil {
		logger.Error(ctx, "dest sweep: close failed", zap.String("hash", t.Hash), zap.Error(txErr))
		return false
	}
	return true
}
