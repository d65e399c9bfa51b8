package main

import (
	"github.com/spf13/cobra"

	auth "github.com/mavi3006/hotel-auth"
)

func migrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			return auth.Migrate(cmd.Context(), db, logger)
		},
	}
}
