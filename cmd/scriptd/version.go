package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scriptd/scriptd/internal/buildinfo"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scriptd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s (commit %s, built %s)\n",
				buildinfo.AppName, buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		},
	}
}
