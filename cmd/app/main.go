package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zarinpal-payment-service/internal/config"
	"zarinpal-payment-service/internal/domain/model"
	pg "zarinpal-payment-service/internal/infra/db/postgres"
	"zarinpal-payment-service/internal/infra/i18n"
	"zarinpal-payment-service/internal/infra/logging"
	"zarinpal-payment-service/internal/infra/metrics"
	red "zarinpal-payment-service/internal/infra/redis"
	"zarinpal-payment-service/internal/infra/web"
	"zarinpal-payment-service/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	lang := flag.String("lang", "en", "locale for buyer-facing pages (en|fa)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	settingsRepo := red.NewCachedSettingsRepo(pg.NewSettingsRepo(pool), redisClient, cfg.Redis.TTL)

	// ---- Use cases ----
	settingsUC := usecase.NewSettingsUseCase(settingsRepo, logger)
	paymentUC := usecase.NewPaymentUseCase(
		orderRepo,
		settingsUC,
		usecase.NewTransportFactory(),
		txManager,
		locker,
		cfg.ZarinPal.Scope,
		cfg.Server.CallbackPath,
		logger,
	)

	// ---- Gateway settings ----
	settings, err := settingsUC.Load(ctx, cfg.ZarinPal.Scope)
	if err != nil {
		logger.Fatal().Err(err).Msg("load gateway settings")
	}
	if !settings.Configured() && cfg.ZarinPal.MerchantID != "" {
		settings = &model.GatewaySettings{
			MerchantID:      cfg.ZarinPal.MerchantID,
			Sandbox:         cfg.ZarinPal.Sandbox,
			Method:          model.GatewayMethod(cfg.ZarinPal.Method),
			RialToToman:     cfg.ZarinPal.RialToToman,
			ZarinGate:       model.ZarinGate(cfg.ZarinPal.ZarinGate),
			CallbackBaseURL: cfg.ZarinPal.CallbackBaseURL,
			StoreURL:        cfg.ZarinPal.StoreURL,
		}
		if err := settingsUC.Save(ctx, 0, settings, nil); err != nil {
			logger.Fatal().Err(err).Msg("seed gateway settings")
		}
		logger.Info().Msg("gateway settings seeded from config")
	}
	logger.Info().
		Str("merchant_id", logging.Redact(settings.MerchantID, cfg.Runtime.Dev)).
		Bool("sandbox", settings.Sandbox).
		Str("method", string(settings.Method)).
		Bool("configured", settings.Configured()).
		Msg("gateway settings loaded")

	// ---- HTTP surface ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, *lang)
	if err != nil {
		logger.Fatal().Err(err).Str("lang", *lang).Msg("translator")
	}
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(paymentUC, settingsUC, tr, auth, cfg.Admin.APIKey, cfg.ZarinPal.Scope, cfg.Server.CallbackPath, logger)

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
