package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herbtrace/pkg/config"
	"github.com/ekaya-inc/herbtrace/pkg/database"
)

// NewMigrateCommand creates the migrate command and its up, down and
// version subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			return migrateUp(cfg, logger)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			sqlDB, err := openSQL(cfg)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return database.RollbackMigration(sqlDB, logger)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			sqlDB, err := openSQL(cfg)
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			version, dirty, err := database.MigrationVersion(sqlDB, logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dirty {
				fmt.Fprintf(out, "%d (dirty)\n", version)
				return nil
			}
			fmt.Fprintf(out, "%d\n", version)
			return nil
		},
	})

	return cmd
}

func migrateUp(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := openSQL(cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	logger.Info("Running database migrations")
	return database.RunMigrations(sqlDB, logger)
}
