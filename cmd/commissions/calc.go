package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/money"
)

var (
	calcType        string
	calcPremium     string
	calcPct         string
	calcOrigination string
	calcEffective   string
)

var hundred = decimal.NewFromInt(100)

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Estimate agency and agent commission for one sale",
	Example: `  commissions calc --type NEW --premium '$1,000' --pct 15%
  commissions calc --type END --premium 400 --pct 12 --origination 2025-01-01 --effective 2025-03-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		origination, err := commission.ParseDate(calcOrigination)
		if err != nil {
			return eris.Wrap(err, "invalid --origination")
		}
		effective, err := commission.ParseDate(calcEffective)
		if err != nil {
			return eris.Wrap(err, "invalid --effective")
		}

		txType := strings.TrimSpace(calcType)
		in := commission.NewCommissionInput(txType, calcPremium, calcPct, origination, effective)
		engine := commission.NewEngine(cfg.EngineConfig(), cfg.IDGenerator(), zap.L())
		res := engine.Calculate(in)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Transaction type:   %s\n", txType)
		fmt.Fprintf(out, "Agent rate:         %s", money.FormatPercent(res.Rate.Value.Mul(hundred)))
		if res.Rate.Fallback {
			fmt.Fprint(out, " (fallback)")
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Agency commission:  %s\n", money.FormatCurrency(res.AgencyEstimatedCommission))
		fmt.Fprintf(out, "Agent commission:   %s\n", money.FormatCurrency(res.AgentEstimatedCommission))
		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		return nil
	},
}

func knownTypes() string {
	types := commission.TransactionTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func init() {
	calcCmd.Flags().StringVar(&calcType, "type", "NEW", "transaction type ("+knownTypes()+")")
	calcCmd.Flags().StringVar(&calcPremium, "premium", "", "premium sold, e.g. $1,000.00")
	calcCmd.Flags().StringVar(&calcPct, "pct", "", "policy gross commission percent, e.g. 15%")
	calcCmd.Flags().StringVar(&calcOrigination, "origination", "", "policy origination date")
	calcCmd.Flags().StringVar(&calcEffective, "effective", "", "effective date")
	rootCmd.AddCommand(calcCmd)
}
