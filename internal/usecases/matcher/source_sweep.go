package matcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bridge-settle.backend/internal/domain/entities"
	domainerrors "bridge-settle.backend/internal/domain/errors"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/internal/usecases/ruleeval"
	"bridge-settle.backend/pkg/logger"
)

// SourceSweep is the periodic task turning matched, unprocessed
// source-side transfers into BridgeTransaction rows (spec §4.2).
type SourceSweep struct {
	transfers domainrepos.TransferRepository
	bridgeTx  domainrepos.BridgeTransactionRepository
	uow       domainrepos.UnitOfWork
	evaluator ruleeval.RuleEvaluator
	cache     *MemoryMatchCache

	versions []entities.TransferVersion
	lookback time.Duration
	limit    int
}

func NewSourceSweep(
	transfers domainrepos.TransferRepository,
	bridgeTx domainrepos.BridgeTransactionRepository,
	uow domainrepos.UnitOfWork,
	evaluator ruleeval.RuleEvaluator,
	cache *MemoryMatchCache,
	versions []entities.TransferVersion,
	lookback time.Duration,
	limit int,
) *SourceSweep {
	return &SourceSweep{
		transfers: transfers, bridgeTx: bridgeTx, uow: uow, evaluator: evaluator, cache: cache,
		versions: versions, lookback: lookback, limit: limit,
	}
}

// Run executes one sweep pass, returning the count of rows created or
// updated.
func (s *SourceSweep) Run(ctx context.Context) (int, error) {
	since := time.Now().Add(-s.lookback)
	candidates, err := s.transfers.FindSourceCandidates(ctx, s.versions, since, s.limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, t := range candidates {
		if s.processOne(ctx, t) {
			processed++
		}
	}
	return processed, nil
}

func (s *SourceSweep) processOne(ctx context.Context, t *entities.Transfer) bool {
	existing, err := s.bridgeTx.GetBySource(ctx, t.ChainID, t.Hash)
	if err == nil && existing.Status.InOperation() {
		// in operation: no mutation allowed, leave as-is for a later pass.
		return false
	}
	if err != nil && err != domainerrors.ErrNotFound {
		logger.Error(ctx, "source sweep: lookup failed", zap.String("hash", t.Hash), zap.Error(err))
		return false
	}

	payout, err := s.evaluator.Evaluate(ctx, t)
	if err != nil {
		if setErr := s.transfers.SetOpStatus(ctx, t.ChainID, t.Hash, entities.OpStatusEvalError); setErr != nil {
			logger.Error(ctx, "source sweep: failed to record eval error", zap.Error(setErr))
		}
		return false
	}

	bt := &entities.BridgeTransaction{
		SourceChain:   t.ChainID,
		SourceID:      t.Hash,
		SourceAddress: t.Sender,
		SourceMaker:   t.Receiver,
		SourceAmount:  t.Amount,
		SourceSymbol:  t.Symbol,
		SourceToken:   t.Token,
		SourceNonce:   t.Nonce,
		SourceTime:    t.Timestamp,

		TargetChain:   payout.TargetChain,
		TargetAddress: t.Sender,
		TargetToken:   payout.TargetToken,
		TargetSymbol:  payout.TargetSymbol,
		TargetAmount:  payout.ResponseAmount,

		RuleID:         payout.RuleID,
		EBCAddress:     payout.EBCAddress,
		DealerAddress:  payout.DealerAddress,
		WithholdingFee: payout.WithholdingFee,
		TradeFee:       payout.TradeFee,
		ResponseMaker:  payout.ResponseMaker,
	}

	var created, skipped bool
	txErr := s.uow.Do(ctx, func(ctx context.Context) error {
		var err error
		created, skipped, err = s.bridgeTx.Upsert(ctx, bt)
		if err != nil {
			return err
		}
		return s.transfers.SetOpStatus(ctx, t.ChainID, t.Hash, entities.OpStatusSourceBuilt)
	})
	if txErr != nil {
		logger.Error(ctx, "source sweep: upsert failed", zap.String("hash", t.Hash), zap.Error(txErr))
		return false
	}
	if skipped {
		return false
	}

	s.cache.PutBridgeRow(bt)
	_ = created
	return true
}
