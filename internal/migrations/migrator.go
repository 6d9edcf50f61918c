package migrations

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/store-ratings/internal/logger"
)

const (
	// advisoryLockKey serialises migrators started by concurrent replicas.
	advisoryLockKey = 727001

	schemaSQL = `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version     BIGINT PRIMARY KEY,
            description TEXT NOT NULL,
            applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `
	currentVersionSQL = `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`
	recordSQL         = `INSERT INTO schema_migrations (version, description) VALUES ($1, $2)`
	deleteSQL         = `DELETE FROM schema_migrations WHERE version = $1`
)

// Status reports where the database stands relative to the known migrations.
type Status struct {
	CurrentVersion    int
	PendingMigrations []int
	TotalMigrations   int
}

// HasPending reports whether any migration is still to be applied.
func (s Status) HasPending() bool {
	return len(s.PendingMigrations) > 0
}

// Migrator applies migrations against a Postgres pool.
type Migrator struct {
	pool       *pgxpool.Pool
	migrations []Migration
	log        *logger.Logger
}

// New builds a migrator from the embedded migration set.
func New(pool *pgxpool.Pool, log *logger.Logger) (*Migrator, error) {
	return NewFromFS(pool, FS(), log)
}

// NewFromFS builds a migrator from an arbitrary filesystem.
func NewFromFS(pool *pgxpool.Pool, fsys fs.FS, log *logger.Logger) (*Migrator, error) {
	migrations, err := Load(fsys)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Migrator{pool: pool, migrations: migrations, log: log.With("component", "migrator")}, nil
}

// Migrations returns the loaded migrations in ascending version order.
func (m *Migrator) Migrations() []Migration {
	return m.migrations
}

// Up applies every pending migration, each in its own transaction, and returns
// how many were applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	applied := 0
	err := m.withLock(ctx, func(conn *pgxpool.Conn) error {
		current, err := currentVersion(ctx, conn)
		if err != nil {
			return err
		}
		m.log.Info("migrating up", "current_version", current, "total", len(m.migrations))

		for _, mig := range m.migrations {
			if mig.Version <= current {
				continue
			}
			m.log.Info("applying migration", "version", mig.Version, "description", mig.Description)
			if err := applyInTx(ctx, conn, func(tx pgx.Tx) error {
				if _, err := tx.Exec(ctx, mig.Up); err != nil {
					return err
				}
				_, err := tx.Exec(ctx, recordSQL, mig.Version, mig.Description)
				return err
			}); err != nil {
				return fmt.Errorf("apply migration %d: %w", mig.Version, err)
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// Down reverts the most recently applied migration. It is a no-op on an empty schema.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withLock(ctx, func(conn *pgxpool.Conn) error {
		current, err := currentVersion(ctx, conn)
		if err != nil {
			return err
		}
		if current == 0 {
			m.log.Info("nothing to revert")
			return nil
		}
		for _, mig := range m.migrations {
			if mig.Version != current {
				continue
			}
			m.log.Info("reverting migration", "version", mig.Version, "description", mig.Description)
			return applyInTx(ctx, conn, func(tx pgx.Tx) error {
				if _, err := tx.Exec(ctx, mig.Down); err != nil {
					return err
				}
				_, err := tx.Exec(ctx, deleteSQL, mig.Version)
				return err
			})
		}
		return fmt.Errorf("applied version %d has no migration file", current)
	})
}

// Status compares the applied version with the known migrations.
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	var status Status
	err := m.withLock(ctx, func(conn *pgxpool.Conn) error {
		current, err := currentVersion(ctx, conn)
		if err != nil {
			return err
		}
		status.CurrentVersion = current
		status.TotalMigrations = len(m.migrations)
		for _, mig := range m.migrations {
			if mig.Version > current {
				status.PendingMigrations = append(status.PendingMigrations, mig.Version)
			}
		}
		return nil
	})
	return status, err
}

func (m *Migrator) withLock(ctx context.Context, fn func(conn *pgxpool.Conn) error) error {
	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, advisoryLockKey); err != nil {
			m.log.Warn("release migration lock failed", "error", err)
		}
	}()

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return fn(conn)
}

func currentVersion(ctx context.Context, conn *pgxpool.Conn) (int, error) {
	var version int
	if err := conn.QueryRow(ctx, currentVersionSQL).Scan(&version); err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	return version, nil
}

func applyInTx(ctx context.Context, conn *pgxpool.Conn, fn func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
