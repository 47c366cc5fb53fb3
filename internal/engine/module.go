package engine

import (
	"context"
	"time"

	"signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			New,
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			e *Engine,
			parent context.Context,
			state *service.State,
		) {
			var cancel context.CancelFunc
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					var loopCtx context.Context
					loopCtx, cancel = context.WithCancel(parent)
					go func() {
						defer close(done)
						e.runLoop(loopCtx, state)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					select {
					case <-done:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				},
			})
		}),
	)
}

// runLoop drives reconciliation on the configured interval until ctx is
// cancelled.
func (e *Engine) runLoop(ctx context.Context, state *service.State) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Tick(ctx); err != nil {
				logger.Error("reconcile tick: %v", err)
			}
			state.TouchTick(time.Now())
		}
	}
}
