package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/money"
)

var (
	reconcileFile   string
	reconcileDryRun bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Apply a carrier statement file to the book",
	Long:  "Reads a statement batch (YAML or JSON), matches each line to the book and stores one statement entry per line. --dry-run prints the breakdown without writing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(reconcileFile)
		if err != nil {
			return eris.Wrapf(err, "read statement %s", reconcileFile)
		}
		lines, err := factory.NewTransactionFactory().ParseStatement(data)
		if err != nil {
			return err
		}

		env, err := initBook(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Book.Reconcile(cmd.Context(), lines, reconcileDryRun)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		mode := "applied"
		if reconcileDryRun {
			mode = "dry run"
		}
		fmt.Fprintf(out, "Statement %s (%s), %s\n\n", rec.StatementID, rec.StatementDate, mode)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tPOLICY\tTYPE\tMATCHED\tEXISTING\tOP\tAMOUNT\tRESULT\tENTRY")
		fmt.Fprintln(w, "-\t------\t----\t-------\t--------\t--\t------\t------\t-----")
		for _, l := range rec.Lines {
			matched := "-"
			if l.Matched != nil {
				matched = l.Matched.TransactionID
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				l.Index+1,
				l.Line.PolicyNumber,
				l.Line.TransactionType,
				matched,
				money.FormatCurrency(l.Commission.Existing),
				l.Commission.Operation.Label(),
				money.FormatCurrency(l.Commission.Amount),
				money.FormatCurrency(l.Commission.Result),
				l.Entry.TransactionID,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Fprintf(out, "\nAgent paid:      %s\n", money.FormatCurrency(rec.TotalCommissionPaid))
		fmt.Fprintf(out, "Agency received: %s\n", money.FormatCurrency(rec.TotalAgencyReceived))
		for _, warn := range rec.Warnings() {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringVarP(&reconcileFile, "file", "f", "", "statement file (.yaml or .json)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "print the breakdown without writing")
	_ = reconcileCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(reconcileCmd)
}
