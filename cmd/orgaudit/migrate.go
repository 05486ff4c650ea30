package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orgaudit/orgaudit/internal/history"
)

func newMigrateCmd(a *app) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) the history database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.URL == "" {
				return fmt.Errorf("no database configured (set database.url or ORGAUDIT_DATABASE_URL)")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			db, err := history.Open(ctx, a.cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			if down {
				if err := history.MigrateDown(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back")
				return nil
			}
			if err := history.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")
	return cmd
}
