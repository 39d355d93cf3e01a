package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/engine"
	"server/internal/gateway"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)

	transactions := repo.NewTransactionRepository(dbpool, runner)
	contributions := repo.NewContributionRepository(dbpool, runner)
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
		logger.Fatal().Err(err).Msg("failed to configure payment gateway")
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

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Engine:            eng,
		Transactions:      transactions,
		Contributions:     contributions,
		Notifications:     notifications,
		Logger:            logger,
		MidtransServerKey: cfg.MidtransServerKey,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		JWTSecret:       cfg.JWTSecret,
		DefaultLocale:   cfg.DefaultLocale,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   countryLookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
