package ruleconfig

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bridge-settle.backend/pkg/logger"
)

// WatchSIGHUP reloads the rule config directory every time the process
// receives SIGHUP, logging the outcome either way. It runs until ctx is
// cancelled; callers start it as a goroutine alongside the ticker jobs.
func (l *Loader) WatchSIGHUP(ctx context.Context) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sighup:
			if err := l.Reload(); err != nil {
				logger.Error(ctx, "rule config reload failed", zap.Error(err))
				continue
			}
			logger.Info(ctx, "rule config reloaded")
		}
	}
}
