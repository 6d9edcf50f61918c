package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/store-ratings/internal/authn"
	"github.com/Clark-Hu/store-ratings/internal/config"
	"github.com/Clark-Hu/store-ratings/internal/events"
	httpserver "github.com/Clark-Hu/store-ratings/internal/http"
	"github.com/Clark-Hu/store-ratings/internal/logger"
	"github.com/Clark-Hu/store-ratings/internal/migrations"
	"github.com/Clark-Hu/store-ratings/internal/observability"
	"github.com/Clark-Hu/store-ratings/internal/repository"
	"github.com/Clark-Hu/store-ratings/internal/service"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	log = log.With("service", cfg.OtelServiceName)

	err = run(ctx, cfg, log)
	if err != nil {
		log.Error("server stopped", "error", err)
	}
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every resource opened after configuration, so each one is released
// through its defer whether startup fails halfway or the server shuts down.
func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	shutdownTracing, err := observability.Init(ctx, observability.Options{
		Exporter:    cfg.OtelExporter,
		ServiceName: cfg.OtelServiceName,
		SampleRatio: cfg.OtelSampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown", "error", err)
		}
	}()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		TxTimeout:              time.Duration(cfg.DBTxTimeoutSecs) * time.Second,
		TxMaxAttempts:          cfg.DBTxMaxAttempts,
		Logger:                 log,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		migrator, err := migrations.New(st.Pool(), log)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("schema up to date", "applied", applied)
	}

	hasher := authn.NewHasher(cfg.BcryptCost)
	var verifier authn.Verifier
	switch cfg.AuthnMode {
	case "remote":
		verifier, err = authn.NewHTTPVerifier(cfg.AuthnURL, cfg.AuthnAPIKey, time.Duration(cfg.AuthnTimeoutSecs)*time.Second, log)
		if err != nil {
			return fmt.Errorf("init authn client: %w", err)
		}
	default:
		verifier = authn.NewLocalVerifier(repository.New(st).Users, hasher)
	}

	publisher, err := events.New(ctx, events.Options{
		Backend:      cfg.EventsBackend,
		RedisAddr:    cfg.RedisAddr,
		RedisChannel: cfg.RedisChannel,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
	}, log)
	if err != nil {
		return fmt.Errorf("init events publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close events publisher", "error", err)
		}
	}()

	svc := service.New(service.Deps{
		Tx:       st,
		Reader:   st.Pool(),
		Hasher:   hasher,
		Verifier: verifier,
		Events:   publisher,
		Logger:   log,
	})
	server := httpserver.New(cfg, st, svc, log)

	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.Port)
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	var serveErr error
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("graceful shutdown error", "error", err)
	}
	return serveErr
}
