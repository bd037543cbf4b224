package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ledger"
	"github.com/fintrack/fintrack/internal/syncer"
	"github.com/fintrack/fintrack/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add [amount] [note...]",
	GroupID: "ledger",
	Short:   "Record a transaction",
	Long: `Record a new transaction.

Positive amounts are income and negative amounts are expenses. --income and
--expense force the sign so the amount can be typed as a plain number.
Without arguments on an interactive terminal a short form is shown.

When offline the transaction is queued and sent once the remote is reachable.

Examples:
  fintrack add 500 salary
  fintrack add -- -12.40 lunch
  fintrack add --expense 12.40 lunch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		income, _ := cmd.Flags().GetBool("income")
		expense, _ := cmd.Flags().GetBool("expense")

		q := ledger.QuickAdd{}
		switch {
		case income:
			q.Kind = ledger.KindIncome
		case expense:
			q.Kind = ledger.KindExpense
		}

		if len(args) == 0 {
			if !ui.IsInteractive() {
				return errors.New("amount is required")
			}
			if err := runAddForm(&q); err != nil {
				return err
			}
		} else {
			q.Amount = args[0]
			q.Note = strings.Join(args[1:], " ")
		}

		rcpt, err := current.coord.QuickAdd(cmd.Context(), q)
		if err != nil {
			return err
		}

		tx := rcpt.Transaction
		if rcpt.Queued() {
			fmt.Printf("%s Offline, queued %s %s (%d pending)\n",
				ui.RenderWarn("⚠"), ui.RenderAmount(tx.Amount), tx.Note, rcpt.Pending)
			return nil
		}
		fmt.Printf("%s Added %s %s\n", ui.RenderPass("✓"), ui.RenderAmount(tx.Amount), tx.Note)
		fmt.Printf("   ID: %s\n", ui.RenderMuted(tx.ID))
		return nil
	},
}

// runAddForm asks for the fields not already set.
func runAddForm(q *ledger.QuickAdd) error {
	kind := string(q.Kind)
	if kind == "" {
		kind = string(ledger.KindExpense)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Type").
				Options(
					huh.NewOption("Expense", string(ledger.KindExpense)),
					huh.NewOption("Income", string(ledger.KindIncome)),
				).
				Value(&kind),
			huh.NewInput().
				Title("Amount").
				Value(&q.Amount).
				Validate(func(s string) error {
					_, err := ledger.ParseAmount(s)
					return err
				}),
			huh.NewInput().
				Title("Note").
				Value(&q.Note),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("add cancelled: %w", err)
	}
	q.Kind = ledger.Kind(kind)
	return nil
}

var updateCmd = &cobra.Command{
	Use:     "update <id> <amount> [note...]",
	GroupID: "ledger",
	Short:   "Replace the amount and note of a transaction",
	Long: `Replace a transaction by id. Its date is set to now.

When offline the update is queued and sent once the remote is reachable.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := ledger.ParseAmount(args[1])
		if err != nil {
			return err
		}

		tx := ledger.Transaction{ID: args[0], Amount: amount, Note: strings.Join(args[2:], " ")}
		rcpt, err := current.coord.UpdateTransaction(cmd.Context(), tx)
		if err != nil {
			return err
		}
		reportMutation(rcpt, "Updated")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	GroupID: "ledger",
	Short:   "Delete a transaction",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rcpt, err := current.coord.DeleteTransaction(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		reportMutation(rcpt, "Deleted")
		return nil
	},
}

func reportMutation(rcpt syncer.Receipt, verb string) {
	id := rcpt.Transaction.ID
	if rcpt.Queued() {
		fmt.Printf("%s Offline, queued %s of %s (%d pending)\n",
			ui.RenderWarn("⚠"), strings.ToLower(verb), id, rcpt.Pending)
		return
	}
	fmt.Printf("%s %s %s\n", ui.RenderPass("✓"), verb, id)
}

func init() {
	addCmd.Flags().Bool("income", false, "Record the amount as income")
	addCmd.Flags().Bool("expense", false, "Record the amount as an expense")
	addCmd.MarkFlagsMutuallyExclusive("income", "expense")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
}
