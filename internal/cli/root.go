// Package cli wires configuration, storage and the HTTP server into the
// csvstore command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/JonMunkholm/csvstore/internal/config"
	"github.com/JonMunkholm/csvstore/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	envFile string
	offline bool // set by commands that never touch the database
	cfg     *config.Config
}

// RootCommand creates the csvstore command. Running it without a
// subcommand starts the server.
func RootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "csvstore",
		Short:         "Upload, browse and search CSV files stored in PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	serveCmd := serveCommand(a)
	rootCmd.RunE = serveCmd.RunE

	rootCmd.AddCommand(
		serveCmd,
		migrateCommand(a),
		ingestCommand(a),
	)

	return rootCmd
}

// initialize loads the dotenv file, the configuration and the logger.
func (a *app) initialize() error {
	loadedEnv := false
	if a.envFile != "" {
		err := godotenv.Load(a.envFile)
		switch {
		case err == nil:
			loadedEnv = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	var opts []config.Option
	if a.offline {
		opts = append(opts, config.WithoutDatabase())
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded",
		"env_file", loadedEnv,
		"port", cfg.Server.Port,
		"layout", cfg.Storage.Layout,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	return nil
}
