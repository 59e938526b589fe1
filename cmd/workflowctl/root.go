package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/config"
	"github.com/garyjia/invoice-workflow/internal/container"
	"github.com/garyjia/invoice-workflow/pkg/utils"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "workflowctl",
		Short:        "Maintenance tools for the invoice workflow service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level to stderr")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newRemindCmd(opts),
		newBookingFormCmd(opts),
		newExtractCmd(opts),
		newUsersCmd(opts),
	)
	return cmd
}

// loadConfig reads configuration for a one-shot command. Background workers
// never run from the CLI.
func (o *rootOptions) loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Reminders.Enabled = false

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{Level: level, OutputPath: "stderr", Format: "console"})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// withContainer starts the container, runs fn and closes it again
func (o *rootOptions) withContainer(ctx context.Context, fn func(*container.Container) error) error {
	cfg, logger, err := o.loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}

	runErr := fn(c)
	if err := c.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
