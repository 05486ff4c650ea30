package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newValidateConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Check the configuration and list the signals it defines",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			compiled, err := a.cfg.Compile()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := tablewriter.NewWriter(out)
			table.Header([]string{"Signal", "Kind", "Weight", "Exceptions"})
			var data [][]string
			for _, s := range compiled.Signals {
				data = append(data, []string{
					s.Key, s.Kind, strconv.Itoa(s.Weight),
					strconv.Itoa(len(compiled.Exceptions[s.Key])),
				})
			}
			if err := table.Bulk(data); err != nil {
				return err
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Config OK")
			return nil
		},
	}
}
