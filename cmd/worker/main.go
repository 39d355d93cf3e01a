package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/engine"
	"server/internal/gateway"
	"server/internal/infra"
)

// The worker runs the two reconciliation sweeps on a fixed interval:
// gateway truth for stale PENDING transactions, then ledger totals.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	transactions := repo.NewTransactionRepository(pool, runner)
	contributions := repo.NewContributionRepository(pool, runner)
	notifications := repo.NewNotificationRepository(runner)
	users := repo.NewUserRepository(runner)

	gw, err := gateway.NewMidtrans(gateway.Options{
		ServerKey:   cfg.MidtransServerKey,
		SnapBaseURL: cfg.MidtransSnapBaseURL,
		APIBaseURL:  cfg.MidtransAPIBaseURL,
		AppURL:      cfg.AppURL,
		HTTPClient:  &http.Client{Timeout: cfg.GatewayTimeout},
		Logger:      &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure payment gateway")
	}

	eng := engine.New(engine.Options{
		Store:         transactions,
		Ledger:        contributions,
		Notifications: notifications,
		Gateway:       gw,
		Contributions: contributions,
		Users:         users,
		Logger:        logger,
		DefaultLocale: cfg.DefaultLocale,
	})

	logger.Info().Dur("interval", cfg.ReconcilePollInterval).Msg("worker: started")
	if err := run(ctx, eng, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func run(ctx context.Context, eng *engine.Engine, cfg *infra.Config, logger infra.Logger) error {
	ticker := time.NewTicker(cfg.ReconcilePollInterval)
	defer ticker.Stop()

	for {
		sweep(ctx, eng, cfg, logger)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func sweep(ctx context.Context, eng *engine.Engine, cfg *infra.Config, logger infra.Logger) {
	applied, err := eng.ReconcilePending(ctx, cfg.ReconcilePendingAge, cfg.ReconcileBatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("worker: pending reconciliation failed")
	} else if applied > 0 {
		logger.Info().Int("applied", applied).Msg("worker: pending transactions reconciled")
	}

	if err := eng.ReconcileLedger(ctx); err != nil {
		logger.Error().Err(err).Msg("worker: ledger reconciliation failed")
	}
}
