// Command storeratingctl is the operator tool for the store ratings database:
// schema migrations, overall-rating repair and event tailing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/store-ratings/internal/config"
	"github.com/Clark-Hu/store-ratings/internal/logger"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "storeratingctl",
		Short:         "Operate the store ratings database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newRecomputeCommand())
	root.AddCommand(newEventsCommand())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// openStore connects using the DB_* environment and returns a logger bound to it.
func openStore(ctx context.Context) (*store.Store, *logger.Logger, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               0,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		TxTimeout:              time.Duration(cfg.DBTxTimeoutSecs) * time.Second,
		TxMaxAttempts:          cfg.DBTxMaxAttempts,
		Logger:                 log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return st, log, nil
}
