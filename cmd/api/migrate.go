package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/contacts-api/internal/persistence"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		newMigrateStep("up", "Apply all pending migrations", (*persistence.Migrator).Up),
		newMigrateStep("down", "Roll back all migrations", (*persistence.Migrator).Down),
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *persistence.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					cmd.Printf("version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func newMigrateStep(use, short string, step func(*persistence.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := withMigrator(step); err != nil {
				return err
			}
			cmd.Printf("migrate %s completed\n", use)
			return nil
		},
	}
}

func withMigrator(fn func(*persistence.Migrator) error) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	m, err := persistence.NewMigrator(cfg.Postgres.DSN, logger)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}
