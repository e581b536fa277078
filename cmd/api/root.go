package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-api/internal/config"
	"github.com/spec-kit/contacts-api/internal/observability"
)

// NewRootCmd creates the root command for the contacts API binary.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "contacts-api",
		Short:        "Contacts REST backend",
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// bootstrap loads configuration and the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
