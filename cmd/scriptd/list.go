package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/scriptd/scriptd/internal/store"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every script in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := store.Open(dsnPathFromConfig(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			scripts, err := st.ListScripts(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.AppendHeader(table.Row{"ID", "Name", "Type", "Cron", "Enabled", "Status", "Last Run"})
			for _, sc := range scripts {
				lastRun := "-"
				if sc.LastRun != nil {
					lastRun = sc.LastRun.Format("2006-01-02 15:04:05")
				}
				cron := sc.Cron
				if cron == "" {
					cron = "-"
				}
				t.AppendRow(table.Row{
					sc.ID, sc.Name, sc.Type, cron, sc.Enabled, sc.LastStatus, lastRun,
				})
			}
			fmt.Println(t.Render())
			return nil
		},
	}
}
