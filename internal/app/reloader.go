package app

import (
	"context"
	"log/slog"
	"time"
)

// reloadTimeout bounds a single periodic reload.
const reloadTimeout = 2 * time.Minute

// DatasetReloader re-reads the dataset source.
type DatasetReloader interface {
	Reload(ctx context.Context) (bool, error)
}

// Reloader re-reads the dataset on a fixed interval so edits to the
// source file or object are picked up without a restart.
type Reloader struct {
	target   DatasetReloader
	interval time.Duration
	logger   *slog.Logger
}

// NewReloader creates a reloader. A zero interval disables it.
func NewReloader(target DatasetReloader, interval time.Duration, logger *slog.Logger) *Reloader {
	return &Reloader{
		target:   target,
		interval: interval,
		logger:   logger.With(slog.String("component", "dataset_reloader")),
	}
}

// Run reloads on every tick until ctx is done. Failures are logged and
// retried on the next tick.
func (r *Reloader) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	r.logger.InfoContext(ctx, "periodic dataset reload enabled", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reloadOnce(ctx)
		}
	}
}

func (r *Reloader) reloadOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()

	start := time.Now()
	changed, err := r.target.Reload(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "periodic dataset reload failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}
	if changed {
		r.logger.InfoContext(ctx, "dataset changed",
			slog.Duration("duration", time.Since(start)))
		return
	}
	r.logger.DebugContext(ctx, "dataset unchanged")
}
