package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartpos/internal/config"
	"smartpos/internal/infra"
	"smartpos/internal/repository"
	"smartpos/internal/router"
	"smartpos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	st := repository.NewSet(db, repository.TxOptions{Timeout: cfg.TxTimeout(), LockTimeout: cfg.LockTimeout()})
	metrics := infra.NewMetrics()
	svcs := router.NewServices(cfg, st, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Alerts go through SMTP when configured, otherwise they are only logged.
	var notifier worker.AlertaNotifier
	if mailer := infra.NewMailer(cfg); mailer != nil {
		notifier = mailer
	}
	alertas := worker.NewAlertaWorker(notifier)

	relayCfg := worker.RelayConfig{
		Eventos:     st.Eventos,
		Lealtad:     svcs.Lealtad,
		Alertas:     alertas,
		CB:          infra.NewCircuitBreaker(infra.DefaultCBConfig("alertas")),
		Metrics:     metrics,
		Interval:    cfg.OutboxInterval(),
		MaxIntentos: cfg.OutboxMaxIntentos,
		BatchSize:   cfg.OutboxBatchSize,
	}

	// Redis is optional: without it alerts are delivered inline by the relay
	// and exhausted events stay in eventos_pendientes as fallido.
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, alert queue and DLQ disabled")
	} else {
		relayCfg.Alertas = worker.NewDispatcher(rdb)
		relayCfg.DLQ = rdb
		worker.NewPool(rdb, alertas, cfg.WorkerPoolSize).Start(ctx)
	}

	worker.NewRelay(relayCfg).Start(ctx)
	worker.StartVencimientosCron(ctx, svcs.Deudas, time.Hour)

	r := router.New(cfg, svcs, db, rdb, metrics)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("SmartPOS backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
