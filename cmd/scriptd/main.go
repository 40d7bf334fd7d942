// Command scriptd is the script orchestrator daemon: it serves the REST+
// WebSocket API over the catalog, supervisor, scheduler, and backup
// components wired together by internal/bootstrap.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	envFile string
	debug   bool
)

func main() {
	root := &cobra.Command{
		Use:           "scriptd",
		Short:         "Script orchestrator daemon",
		Long:          "scriptd watches a directory of scripts, runs them on a schedule or on demand, and exposes their status and logs over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to scriptd.yaml (default: none, env/flags only)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file to load, if present")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(serveCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(listCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
