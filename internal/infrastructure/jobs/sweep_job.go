// Package jobs holds the ticker-driven background work that keeps the
// settlement engine moving without external scheduling: the matcher
// sweeps, the Sequencer's in-flight queue drain, and receipt
// confirmation.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bridge-settle.backend/pkg/logger"
	"bridge-settle.backend/pkg/metrics"
)

// Runner is one pollable unit of work -- matcher.SourceSweep and
// matcher.DestSweep both already expose this exact shape.
type Runner interface {
	Run(ctx context.Context) (int, error)
}

// SweepJob runs a Runner on a fixed interval until stopped, logging the
// row count each pass produces. cmd/server/main.go wires one SweepJob per
// direction (source, dest), each running a sweep over both rule versions,
// so V1 and V2 share one interval per direction; this matches the teacher's one ticker
// goroutine per job idiom (see the now-repurposed PaymentRequestExpiryJob
// shape this was built from).
type SweepJob struct {
	name     string
	runner   Runner
	interval time.Duration
	stop     chan struct{}
}

func NewSweepJob(name string, runner Runner, interval time.Duration) *SweepJob {
	return &SweepJob{name: name, runner: runner, interval: interval, stop: make(chan struct{})}
}

func (j *SweepJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting sweep job", zap.String("job", j.name), zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "sweep job stopped (context cancelled)", zap.String("job", j.name))
			return
		case <-j.stop:
			logger.Info(ctx, "sweep job stopped", zap.String("job", j.name))
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *SweepJob) Stop() {
	close(j.stop)
}

func (j *SweepJob) runOnce(ctx context.Context) {
	start := time.Now()
	n, err := j.runner.Run(ctx)
	metrics.SweepDuration.WithLabelValues(j.name).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error(ctx, "sweep job pass failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	if n > 0 {
		metrics.SweepRows.WithLabelValues(j.name).Add(float64(n))
		logger.Info(ctx, "sweep job pass completed", zap.String("job", j.name), zap.Int("rows", n))
	}
}
