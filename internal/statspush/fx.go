package statspush

import (
	"context"
	"time"

	"github.com/smallbiznis/metalid/internal/config"
	memberdomain "github.com/smallbiznis/metalid/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("stats.push",
	fx.Provide(NewPusher),
	fx.Invoke(startWorker),
)

func startWorker(lc fx.Lifecycle, cfg config.Config, pusher Pusher, members memberdomain.Service, log *zap.Logger) {
	if pusher == nil {
		return
	}
	worker := NewWorker(log, members, NewGauges(), pusher, time.Duration(cfg.StatsPush.Interval)*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				worker.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
