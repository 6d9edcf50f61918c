package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/store-ratings/internal/migrations"
)

func newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Apply, revert or inspect schema migrations",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *migrations.Migrator) error {
				applied, err := m.Up(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
				return nil
			})
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *migrations.Migrator) error {
				return m.Down(ctx)
			})
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *migrations.Migrator) error {
				status, err := m.Status(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "current version: %d\n", status.CurrentVersion)
				fmt.Fprintf(out, "total migrations: %d\n", status.TotalMigrations)
				if status.HasPending() {
					fmt.Fprintf(out, "pending: %v\n", status.PendingMigrations)
				} else {
					fmt.Fprintln(out, "schema is up to date")
				}
				return nil
			})
		},
	})
	return migrateCmd
}

func withMigrator(ctx context.Context, fn func(context.Context, *migrations.Migrator) error) error {
	st, log, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	defer log.Sync()

	m, err := migrations.New(st.Pool(), log)
	if err != nil {
		return err
	}
	return fn(ctx, m)
}
