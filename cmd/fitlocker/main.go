// Command fitlocker runs the fitness data layer: a reference cloud server,
// a one-shot reconciliation pass, or a local status report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitlocker/fitlocker/config"
	"github.com/fitlocker/fitlocker/logging"
)

var (
	cfgPath string
	cfg     config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "fitlocker",
		Short: "Local-first fitness tracking data layer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return err
			}
			logging.Init(cfg.Logging)
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(serveCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
