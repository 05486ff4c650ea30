package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orgaudit/orgaudit/internal/ingestion"
)

func newInventoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Manage stored organization inventories",
	}
	cmd.AddCommand(newInventoryPushCmd(a))
	return cmd
}

func newInventoryPushCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "push FILE",
		Short: "Validate an inventory file and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading inventory: %w", err)
			}
			inv, err := ingestion.ParseInventory(data)
			if err != nil {
				return err
			}

			storage, err := ingestion.NewStorage(ctx, a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("storage: %w", err)
			}
			if err := storage.PutInventory(ctx, inv.Org, name, data); err != nil {
				return fmt.Errorf("storing inventory: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored inventory %s/%s (%d repositories)\n", inv.Org, name, len(inv.Repos))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", ingestion.DefaultInventory, "Inventory name")
	return cmd
}
