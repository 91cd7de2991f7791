/*
Command commissions runs the commission engine: the HTTP API and the
operator commands around the same book of business.

COMMANDS:
  serve      Start the HTTP API (and the renewal scheduler when enabled)
  calc       Estimate commission for one sale
  reconcile  Apply a carrier statement file (YAML or JSON)
  renewals   List policies due for renewal
  renew      Store the renewal of a term
  balances   Print per-policy balances
  export     Write the book as CSV or XLSX

CONFIGURATION:
  config.yaml in the working directory (or --config), .env, and
  COMMISSION_* environment variables. See config/config.go.
*/
package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "commissions",
	Short: "Insurance commission calculation and reconciliation",
	Long:  "Computes agent and agency commission for policy transactions, reconciles carrier statements against them, tracks balances and finds renewals.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
