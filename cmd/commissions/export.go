package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/export"
)

var (
	exportFormat string
	exportTable  string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the book as CSV or XLSX",
	Example: `  commissions export --table balances > balances.csv
  commissions export --format xlsx --out book.xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		table := exportTable
		if table == "" {
			table = export.DefaultTable(format)
		}

		env, err := initBook(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		tables, err := export.Tables(cmd.Context(), env.Book, table)
		if err != nil {
			return err
		}

		var out io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close()
			out = f
		}

		if err := export.Write(out, format, tables...); err != nil {
			return err
		}
		if exportOut != "" {
			zap.L().Info("export written", zap.String("file", exportOut), zap.String("table", table))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or xlsx")
	exportCmd.Flags().StringVar(&exportTable, "table", "", "transactions, balances, statements or all")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
