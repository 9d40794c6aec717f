package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bridge-settle.backend/pkg/logger"
)

// Confirmer is the subset of reconcile.Reconciler this job drives: a
// repeated scan of in-flight payouts awaiting their own receipt, as
// opposed to Reconciler.Run's one-shot startup crash recovery.
type Confirmer interface {
	ConfirmPending(ctx context.Context, limit int) (int, error)
}

// ReceiptConfirmJob periodically advances StatusPaidSuccess rows to
// StatusBridgeSuccess (or StatusSendFailed) once their broadcast receipt
// is observed -- the recurring half of spec §4.3's final step, the
// startup Reconciler.Run only resolves rows stuck at StatusReadyPaid.
type ReceiptConfirmJob struct {
	confirmer Confirmer
	limit     int
	interval  time.Duration
	stop      chan struct{}
}

func NewReceiptConfirmJob(confirmer Confirmer, limit int, interval time.Duration) *ReceiptConfirmJob {
	return &ReceiptConfirmJob{confirmer: confirmer, limit: limit, interval: interval, stop: make(chan struct{})}
}

func (j *ReceiptConfirmJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting receipt confirm job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "receipt confirm job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "receipt confirm job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ReceiptConfirmJob) Stop() {
	close(j.stop)
}

func (j *ReceiptConfirmJob) runOnce(ctx context.Context) {
	n, err := j.confirmer.ConfirmPending(ctx, j.limit)
	if err != nil {
		logger.Error(ctx, "receipt confirm job pass failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info(ctx, "receipt confirm job pass completed", zap.Int("rows", n))
	}
}
