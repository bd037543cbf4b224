package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "ledger",
	Short:   "List transactions",
	Long: `List every transaction, newest last.

When the remote is reachable the list is fetched fresh and the local snapshot
is replaced. Otherwise the last snapshot is shown.

Examples:
  fintrack list
  fintrack list --since "last month"
  fintrack list --since 2026-01-01 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(mustString(cmd, "format"))
		if err != nil {
			return err
		}
		since, err := parseSince(mustString(cmd, "since"), time.Now())
		if err != nil {
			return err
		}

		online := current.coord.Online()
		txs := filterSince(current.coord.FetchAll(cmd.Context()), since)

		if format != formatTable {
			views := make([]txView, 0, len(txs))
			for _, tx := range txs {
				views = append(views, viewOf(tx))
			}
			return writeStructured(os.Stdout, format, views)
		}

		if !online {
			fmt.Printf("%s Offline, showing the last snapshot\n", ui.RenderWarn("⚠"))
		}
		if len(txs) == 0 {
			fmt.Println(ui.RenderMuted("No transactions."))
			return nil
		}

		rows := make([][]string, 0, len(txs))
		for _, tx := range txs {
			rows = append(rows, []string{
				tx.ID,
				tx.Date.Local().Format("2006-01-02 15:04"),
				ui.RenderAmount(tx.Amount),
				tx.Note,
			})
		}
		fmt.Println(ui.Table([]string{"ID", "DATE", "AMOUNT", "NOTE"}, rows))

		totals := ledger.Summarize(txs)
		fmt.Printf("%d transactions, balance %s\n", len(txs), ui.RenderAmount(totals.Balance))
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:     "summary",
	GroupID: "ledger",
	Short:   "Show income, expenses and monthly totals",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(mustString(cmd, "format"))
		if err != nil {
			return err
		}

		txs := current.coord.FetchAll(cmd.Context())
		totals := ledger.Summarize(txs)
		months := ledger.MonthlySummary(txs)

		if format != formatTable {
			return writeStructured(os.Stdout, format, struct {
				Totals ledger.Totals       `json:"totals" yaml:"totals"`
				Months []ledger.MonthTotal `json:"months" yaml:"months"`
			}{totals, months})
		}

		fmt.Printf("\n%s Summary\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Income:  %s\n", ui.RenderAmount(totals.Income))
		fmt.Printf("Expense: %s\n", ui.RenderAmount(totals.Expense.Neg()))
		fmt.Printf("Balance: %s\n\n", ui.RenderBold(totals.Balance.StringFixed(2)))

		if len(months) == 0 {
			return nil
		}
		rows := make([][]string, 0, len(months))
		for _, m := range months {
			rows = append(rows, []string{m.Month, fmt.Sprint(m.Count), ui.RenderAmount(m.Total)})
		}
		fmt.Println(ui.Table([]string{"MONTH", "COUNT", "NET"}, rows))
		return nil
	},
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	listCmd.Flags().String("since", "", "Only show transactions on or after this date (e.g. 2026-01-01, \"last week\")")
	listCmd.Flags().StringP("format", "f", "table", "Output format: table, json or yaml")
	summaryCmd.Flags().StringP("format", "f", "table", "Output format: table, json or yaml")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(summaryCmd)
}
