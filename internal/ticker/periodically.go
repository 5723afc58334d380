package ticker

import (
	"context"
	"log/slog"
	"time"
)

// A background job run on a fixed interval, such as flushing pending XP or sweeping auto-clean channels.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(context.Context) error
	Logger   *slog.Logger

	// If positive, Run is invoked once more after the parent context is done, with a fresh context bounded by this timeout.
	FinalTimeout time.Duration
}

// Periodically runs the task at its interval until the context is done. Failed runs are logged and do not stop the loop. Always returns the context error.
func (t *Task) Periodically(ctx context.Context) error {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("task", t.Name)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if t.FinalTimeout > 0 {
				fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.FinalTimeout)
				if err := t.Run(fctx); err != nil {
					logger.Error("final run of periodic task failed", "err", err)
				}
				cancel()
			}
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := t.Run(ctx); err != nil {
				logger.Error("periodic task failed", "err", err)
				continue
			}
			logger.Debug("periodic task complete", "duration", time.Since(start))
		}
	}
}
