package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/money"
)

var (
	renewalsWindow int
	renewalsAsOf   string

	renewTermMonths   int
	renewPolicyNumber string
	renewPremium      string
)

var renewalsCmd = &cobra.Command{
	Use:   "renewals",
	Short: "List policies whose current term expires inside the window",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initBook(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		asOf := commission.DateOf(env.Book.Engine.Now())
		if renewalsAsOf != "" {
			if asOf, err = commission.ParseDate(renewalsAsOf); err != nil {
				return eris.Wrap(err, "invalid --as-of")
			}
		}
		window := renewalsWindow
		if window <= 0 {
			window = env.Book.Engine.Config.LookaheadDays
		}

		candidates, warnings, err := env.Book.Renewals(cmd.Context(), asOf, window)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(candidates) == 0 {
			fmt.Fprintf(out, "No renewals due within %d days of %s.\n", window, asOf)
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TRANSACTION\tPOLICY\tCUSTOMER\tEXPIRES\tDAYS\tPREMIUM")
		fmt.Fprintln(w, "-----------\t------\t--------\t-------\t----\t-------")
		for _, c := range candidates {
			days := fmt.Sprintf("%d", c.DaysRemaining)
			if c.Expired() {
				days += " (expired)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.Source.TransactionID,
				c.PolicyNumber,
				c.Customer,
				c.ExpirationDate,
				days,
				money.FormatCurrency(c.Source.PremiumSold),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		for _, warn := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
		}
		return nil
	},
}

var renewCmd = &cobra.Command{
	Use:   "renew <transaction-id>",
	Short: "Store the renewal of a NEW or RWL term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initBook(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		opts := commission.RenewalOptions{
			Term:            commission.TermLength{Months: renewTermMonths},
			NewPolicyNumber: renewPolicyNumber,
		}
		if opts.Term.IsZero() {
			opts.Term = env.Book.Engine.Config.Term
		}
		if renewPremium != "" {
			premium := money.Parse(renewPremium)
			opts.PremiumSold = &premium
		}

		tx, warnings, err := env.Book.Renew(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Renewed %s as %s\n", args[0], tx.TransactionID)
		fmt.Fprintf(out, "Policy:           %s\n", tx.PolicyNumber)
		fmt.Fprintf(out, "Term:             %s to %s\n", tx.EffectiveDate, tx.ExpirationDate)
		fmt.Fprintf(out, "Premium:          %s\n", money.FormatCurrency(tx.PremiumSold))
		fmt.Fprintf(out, "Agent commission: %s\n", money.FormatCurrency(tx.AgentEstimatedCommission))
		for _, warn := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
		}
		return nil
	},
}

func init() {
	renewalsCmd.Flags().IntVar(&renewalsWindow, "window", 0, "lookahead in days (default from config)")
	renewalsCmd.Flags().StringVar(&renewalsAsOf, "as-of", "", "scan date (default today)")
	rootCmd.AddCommand(renewalsCmd)

	renewCmd.Flags().IntVar(&renewTermMonths, "term-months", 0, "renewal term length (default renewal.term_months)")
	renewCmd.Flags().StringVar(&renewPolicyNumber, "policy-number", "", "new policy number issued by the carrier")
	renewCmd.Flags().StringVar(&renewPremium, "premium", "", "renewal premium when it differs from the current term")
	rootCmd.AddCommand(renewCmd)
}
