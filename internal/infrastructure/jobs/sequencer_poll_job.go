package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bridge-settle.backend/internal/domain/entities"
	"bridge-settle.backend/pkg/logger"
)

// Drainer is the subset of store.Store the poll job needs: enumerate the
// active (chain, token) keys and pull a bounded batch off each.
type Drainer interface {
	Keys() []string
	Drain(key string, limit int) []*entities.TransferAmountTransaction
}

// Dispatcher is the subset of sequencer.Sequencer the poll job drives.
// Single-item keys go through the single-transfer path; anything larger
// goes through the batch path, matching the teacher's own
// one-or-many dispatch idiom in its payment retry sweep.
type Dispatcher interface {
	SingleSendTransactionByTransfer(ctx context.Context, item *entities.TransferAmountTransaction) error
	BatchSendTransactionByTransfer(ctx context.Context, items []*entities.TransferAmountTransaction) error
}

// SequencerPollJob periodically drains the Store's in-flight queue and
// hands each (chain, token) bucket to the Sequencer (spec §4.3/§4.5).
type SequencerPollJob struct {
	store      Drainer
	sequencer  Dispatcher
	batchLimit int
	interval   time.Duration
	stop       chan struct{}
}

func NewSequencerPollJob(store Drainer, sequencer Dispatcher, batchLimit int, interval time.Duration) *SequencerPollJob {
	return &SequencerPollJob{
		store: store, sequencer: sequencer, batchLimit: batchLimit,
		interval: interval, stop: make(chan struct{}),
	}
}

func (j *SequencerPollJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting sequencer poll job", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "sequencer poll job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "sequencer poll job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SequencerPollJob) Stop() {
	close(j.stop)
}

func (j *SequencerPollJob) runOnce(ctx context.Context) {
	for _, key := range j.store.Keys() {
		items := j.store.Drain(key, j.batchLimit)
		if len(items) == 0 {
			continue
		}
		j.dispatch(ctx, key, items)
	}
}

func (j *SequencerPollJob) dispatch(ctx context.Context, key string, items []*entities.TransferAmountTransaction) {
	if len(items) == 1 {
		if err := j.sequencer.SingleSendTransactionByTransfer(ctx, items[0]); err != nil {
			logger.Error(ctx, "sequencer poll: single send failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := j.sequencer.BatchSendTransactionByTransfer(ctx, items); err != nil {
		logger.Error(ctx, "sequencer poll: batch send failed", zap.String("key", key), zap.Int("count", len(items)), zap.Error(err))
	}
}
