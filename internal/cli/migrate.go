package cli

import (
	"github.com/JonMunkholm/csvstore/internal/store"
	"github.com/spf13/cobra"
)

func migrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and indexes of the configured storage layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := store.Open(cmd.Context(), a.cfg.Database, a.cfg.Storage)
			if err != nil {
				return err
			}
			defer repo.Close()

			return repo.Migrate(cmd.Context())
		},
	}
}
