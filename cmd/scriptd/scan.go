package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scriptd/scriptd/internal/bootstrap"
	"github.com/scriptd/scriptd/internal/store"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single disk-sync pass and exit",
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

			syncer := bootstrap.NewSyncer(st, cfg.ScriptRoot)
			n, err := syncer.Sync()
			if err != nil {
				return err
			}
			fmt.Printf("disk-sync complete: %d new script(s) discovered\n", n)
			return nil
		},
	}
}
