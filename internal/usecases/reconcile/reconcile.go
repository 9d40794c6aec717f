// Package reconcile implements the startup crash-recovery scan spec.md
// §5 and scenario S3 require: any bridge row left at StatusReadyPaid with
// a matching SerialRelation anchor must be resolved against the chain
// before the engine resumes normal operation, since the process may have
// crashed between broadcast and commit.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	domainentities "bridge-settle.backend/internal/domain/entities"
	domainrepos "bridge-settle.backend/internal/domain/repositories"
	"bridge-settle.backend/pkg/logger"
)

// ReceiptStatus is the trichotomy a chain lookup for a broadcast hash can
// settle into.
type ReceiptStatus int

const (
	ReceiptPending ReceiptStatus = iota
	ReceiptSuccess
	ReceiptFailed
)

// ReceiptFetcher resolves a broadcast hash on one chain to its outcome.
// Implemented against EVMClient/ClientFactory in the blockchain package;
// named narrowly here so reconcile never imports blockchain directly,
// matching the sequencer package's interfaces.go pattern for breaking
// layer cycles.
type ReceiptFetcher interface {
	FetchReceiptStatus(ctx context.Context, chain, txHash string) (ReceiptStatus, error)
}

// Alerts is the one-shot alert sink (spec §6), duplicated narrowly here
// rather than imported from sequencer to keep reconcile's dependency
// surface self-contained.
type Alerts interface {
	Alert(ctx context.Context, text string, channels ...string) error
}

// Reconciler scans SerialRelationRepository.ListUnreconciled and, for each
// entry whose bridge row is still at StatusReadyPaid, asks the chain what
// actually happened to the recorded hash.
type Reconciler struct {
	serials  domainrepos.SerialRelationRepository
	bridgeTx domainrepos.BridgeTransactionRepository
	uow      domainrepos.UnitOfWork
	receipts ReceiptFetcher
	alerter  Alerts
}

func New(
	serials domainrepos.SerialRelationRepository,
	bridgeTx domainrepos.BridgeTransactionRepository,
	uow domainrepos.UnitOfWork,
	receipts ReceiptFetcher,
	alerter Alerts,
) *Reconciler {
	return &Reconciler{serials: serials, bridgeTx: bridgeTx, uow: uow, receipts: receipts, alerter: alerter}
}

// Run resolves every unreconciled serial record it finds and returns how
// many bridge rows it advanced. It is meant to run once at startup, before
// the sweep and sequencer jobs begin; a row it cannot yet resolve (receipt
// still pending) is left untouched for a later restart or manual sweep to
// pick up.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	records, err := r.serials.ListUnreconciled(ctx)
	if err != nil {
		return 0, err
	}

	advanced := 0
	seen := make(map[string]bool) // (chain, sourceID) already handled this pass
	for _, rel := range records {
		dedupeKey := rel.Chain + ":" + rel.SourceID
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true

		if r.reconcileOne(ctx, rel) {
			advanced++
		}
	}
	return advanced, nil
}

// ConfirmPending scans up to limit rows at StatusPaidSuccess and asks the
// chain whether the recorded txHash actually mined, advancing each to 99
// (receipt observed, spec §4.3's single-path final step) or 97 (reverted).
// Unlike Run, this is meant to be called repeatedly on a ticker for the
// entire lifetime of the process -- a fresh broadcast sits at 95 until its
// receipt confirms, which can take longer than one poll interval.
func (r *Reconciler) ConfirmPending(ctx context.Context, limit int) (int, error) {
	rows, _, err := r.bridgeTx.ListByStatus(ctx, domainentities.StatusPaidSuccess, 0, limit)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, bt := range rows {
		if r.confirmOne(ctx, bt) {
			advanced++
		}
	}
	return advanced, nil
}

func (r *Reconciler) confirmOne(ctx context.Context, bt *domainentities.BridgeTransaction) bool {
	status, err := r.receipts.FetchReceiptStatus(ctx, bt.TargetChain, bt.TargetID)
	if err != nil {
		logger.Error(ctx, "confirm pending: receipt lookup failed",
			zap.String("chain", bt.TargetChain), zap.String("hash", bt.TargetID), zap.Error(err))
		return false
	}

	switch status {
	case ReceiptPending:
		return false
	case ReceiptSuccess:
		if err := r.uow.Do(ctx, func(ctx context.Context) error {
			return r.bridgeTx.MarkBridgeSuccess(ctx, bt.ID, bt.TargetMaker)
		}); err != nil {
			logger.Error(ctx, "confirm pending: mark bridge success failed", zap.Error(err))
			return false
		}
		return true
	case ReceiptFailed:
		if err := r.uow.Do(ctx, func(ctx context.Context) error {
			return r.bridgeTx.MarkSendFailed(ctx, bt.ID, bt.TargetID)
		}); err != nil {
			logger.Error(ctx, "confirm pending: mark send failed failed", zap.Error(err))
			return false
		}
		r.alert(ctx, "confirm pending: payout "+bt.TargetID+" reverted on chain "+bt.TargetChain)
		return true
	default:
		return false
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, rel *domainentities.SerialRelation) bool {
	bt, err := r.bridgeTx.GetBySourceID(ctx, rel.SourceID)
	if err != nil {
		logger.Warn(ctx, "reconcile: bridge row missing for serial relation",
			zap.String("chain", rel.Chain), zap.String("sourceId", rel.SourceID), zap.Error(err))
		return false
	}
	if bt.Status != domainentities.StatusReadyPaid {
		return false // already resolved by a previous pass or the normal flow
	}

	status, err := r.receipts.FetchReceiptStatus(ctx, rel.Chain, rel.TargetHash)
	if err != nil {
		logger.Error(ctx, "reconcile: receipt lookup failed",
			zap.String("chain", rel.Chain), zap.String("hash", rel.TargetHash), zap.Error(err))
		r.alert(ctx, "reconcile: receipt lookup failed for "+rel.TargetHash+": "+err.Error())
		return false
	}

	switch status {
	case ReceiptPending:
		return false
	case ReceiptSuccess:
		if err := r.uow.Do(ctx, func(ctx context.Context) error {
			return r.bridgeTx.MarkPaidSuccess(ctx, bt.ID, rel.TargetHash, rel.Sender)
		}); err != nil {
			logger.Error(ctx, "reconcile: mark paid success failed", zap.Error(err))
			return false
		}
		return true
	case ReceiptFailed:
		if err := r.uow.Do(ctx, func(ctx context.Context) error {
			return r.bridgeTx.MarkSendFailed(ctx, bt.ID, rel.TargetHash)
		}); err != nil {
			logger.Error(ctx, "reconcile: mark send failed failed", zap.Error(err))
			return false
		}
		r.alert(ctx, "reconcile: payout "+rel.TargetHash+" reverted on chain "+rel.Chain)
		return true
	default:
		return false
	}
}

func (r *Reconciler) alert(ctx context.Context, text string) {
	if r.alerter == nil {
		return
	}
	if err := r.alerter.Alert(ctx, text, "TG"); err != nil {
		logger.Error(ctx, "reconcile: alert dispatch failed", zap.Error(err))
	}
}
