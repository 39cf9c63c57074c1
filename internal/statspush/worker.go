package statspush

import (
	"context"
	"time"

	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"go.uber.org/zap"
)

const defaultInterval = 5 * time.Minute

type StatsSource interface {
	Stats(ctx context.Context) (memberdomain.Stats, error)
}

type Worker struct {
	log      *zap.Logger
	source   StatsSource
	gauges   *Gauges
	pusher   Pusher
	interval time.Duration
}

func NewWorker(log *zap.Logger, source StatsSource, gauges *Gauges, pusher Pusher, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Worker{
		log:      log.Named("statspush"),
		source:   source,
		gauges:   gauges,
		pusher:   pusher,
		interval: interval,
	}
}

// RunOnce refreshes the gauges from the store and pushes them.
func (w *Worker) RunOnce(ctx context.Context) error {
	stats, err := w.source.Stats(ctx)
	if err != nil {
		return err
	}
	w.gauges.Set(stats)

	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	return w.pusher.Push(pushCtx, w.gauges.Registry())
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.RunOnce(ctx); err != nil {
		w.log.Warn("initial stats push failed", zap.Error(err))
	}
	for {
		select {
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.log.Warn("stats push failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.log.Info("stopping stats push worker")
			return
		}
	}
}
