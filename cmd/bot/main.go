package main

import (
	"context"
	"log"

	"signal_bot/internal/engine"
	"signal_bot/internal/exchange"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/telegram"
	"signal_bot/internal/notify"
	"signal_bot/internal/parser"
	"signal_bot/internal/store/pg"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

const serviceName = "signal_bot"

func main() {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			// App-wide context for the long-lived goroutines (reconcile
			// loop, update listener, price stream), cancelled on shutdown.
			func(lc fx.Lifecycle) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						cancel()
						return nil
					},
				})
				return ctx
			},
		),
		config.Module(),
		postgres.Module(),
		health.Module(),
		engine.Module(),
		telegram.Module(),
		fx.Provide(
			func(cfg *config.Config) *exchange.Client {
				return exchange.NewClient(cfg.Binance.APIKey, cfg.Binance.APISecret, cfg.Binance.QuoteAsset)
			},
			func(c *exchange.Client) engine.Exchange { return c },

			func(txm db.TxManager) *pg.Positions { return pg.NewPositions(txm) },
			func(s *pg.Positions) engine.PositionStore { return s },

			func(cfg *config.Config) (*parser.Parser, error) {
				return parser.New(cfg.Parser.RulesFile, cfg.Trading.MaxLeverage)
			},

			func(cfg *config.Config) (notify.Notifier, error) {
				if cfg.Telegram.Token == "" {
					return notify.NewStdout(), nil
				}
				return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
			},
			func(n notify.Notifier) engine.Notifier { return n },

			func(cfg *config.Config) engine.Config {
				return engine.Config{
					QuoteAsset:        cfg.Binance.QuoteAsset,
					OrderFractionPct:  decimal.NewFromFloat(cfg.Trading.OrderFractionPct),
					MaxNotional:       decimal.NewFromFloat(cfg.Trading.MaxNotional),
					MarginMode:        cfg.Trading.MarginMode,
					ReconcileInterval: cfg.Trading.ReconcileInterval,
				}
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config) error {
				_, closeTracer, err := tracing.InitTracer(tracing.Config{
					Host: cfg.Jaeger.Host,
					Port: cfg.Jaeger.Port,
				})
				if err != nil {
					return err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error {
						closeTracer()
						return nil
					},
				})
				return nil
			},
			func(lc fx.Lifecycle, c *exchange.Client, ctx context.Context) {
				lc.Append(fx.Hook{
					OnStart: func(_ context.Context) error {
						go c.StreamMarkPrices(ctx)
						return nil
					},
				})
			},
		),
	)

	app.Run()
}
