// Package cli wires the herbtrace commands: the HTTP server, schema
// migrations and the offline provenance and locator exports.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/config"
	"github.com/ekaya-inc/herbtrace/pkg/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Version    string
}

// NewRootCommand creates the root command. version is reported by /ping and
// set at build time.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:           "herbtrace",
		Short:         "Herbal supply-chain traceability register",
		Long:          "Records wild collections, processing batches and lab results, and serves each batch's provenance.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (default: ./config.yaml when present)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewProvenanceCommand(opts))
	cmd.AddCommand(NewLocatorCommand(opts))

	return cmd
}

// load reads the configuration and builds the process logger from it.
func (o *RootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.ConfigPath, o.Version)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
