package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/syncer"
	"github.com/fintrack/fintrack/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "Inspect and replay changes made while offline",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show queued changes in replay order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := parseFormat(mustString(cmd, "format"))
		if err != nil {
			return err
		}

		ops, err := current.coord.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if format != formatTable {
			return writeStructured(os.Stdout, format, ops)
		}

		if len(ops) == 0 {
			fmt.Printf("%s Queue is empty\n", ui.RenderPass("✓"))
			return nil
		}
		rows := make([][]string, 0, len(ops))
		for _, op := range ops {
			rows = append(rows, []string{
				fmt.Sprint(op.Seq),
				string(op.Action),
				op.Payload["id"],
				op.Payload["amount"],
				op.EnqueuedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Println(ui.Table([]string{"SEQ", "ACTION", "ID", "AMOUNT", "QUEUED"}, rows))
		return nil
	},
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Replay queued changes now",
	Long: `Run one drain pass: every queued change is sent in order. Changes the
remote refuses stay queued and are retried on the next pass.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := current.coord.Drain(cmd.Context())
		if errors.Is(err, syncer.ErrDrainInProgress) {
			fmt.Printf("%s Another replay is already running\n", ui.RenderWarn("⚠"))
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case result.Skipped:
			fmt.Printf("%s Offline, nothing sent (%d pending)\n", ui.RenderWarn("⚠"), result.Remaining)
		case result.Attempted == 0:
			fmt.Printf("%s Queue is empty\n", ui.RenderPass("✓"))
		case result.Failed > 0:
			fmt.Printf("%s Sent %d of %d, %d still queued\n",
				ui.RenderWarn("⚠"), result.Replayed, result.Attempted, result.Remaining)
		default:
			fmt.Printf("%s Sent %d queued change(s)\n", ui.RenderPass("✓"), result.Replayed)
		}
		return nil
	},
}

func init() {
	queueListCmd.Flags().StringP("format", "f", "table", "Output format: table, json or yaml")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueFlushCmd)
	rootCmd.AddCommand(queueCmd)
}
