package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/money"
)

var balancesOutstanding bool

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Print estimated, paid and due commission per policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initBook(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		report, _, err := env.Book.Report(cmd.Context())
		if err != nil {
			return err
		}

		policies := report.Policies
		if balancesOutstanding {
			policies = report.Outstanding()
		}

		out := cmd.OutOrStdout()
		if len(policies) == 0 {
			fmt.Fprintln(out, "No policies.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "POLICY\tCUSTOMER\tROWS\tESTIMATED\tPAID\tDUE\t")
		fmt.Fprintln(w, "------\t--------\t----\t---------\t----\t---\t")
		for _, pb := range policies {
			writeBalanceRow(w, pb)
		}
		fmt.Fprintln(w, "\t\t\t\t\t\t")
		writeBalanceRow(w, report.Totals)
		return w.Flush()
	},
}

func writeBalanceRow(w *tabwriter.Writer, pb commission.PolicyBalance) {
	policy := pb.PolicyNumber
	if policy == "" {
		policy = "TOTAL"
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t\n",
		policy,
		pb.Customer,
		pb.Transactions,
		money.FormatCurrency(pb.AgentEstimated),
		money.FormatCurrency(pb.AgentPaid),
		money.FormatCurrency(pb.BalanceDue),
	)
}

func init() {
	balancesCmd.Flags().BoolVar(&balancesOutstanding, "outstanding", false, "only policies with a non-zero balance")
	rootCmd.AddCommand(balancesCmd)
}
