package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/ui"
)

var (
	configPath string
	forceOff   bool
	logLevel   string

	// current is the app built for the running command.
	current *app
)

// skipApp marks commands that run without a store or coordinator.
const skipApp = "skip-app"

var rootCmd = &cobra.Command{
	Use:   "fintrack",
	Short: "Personal finance tracker that keeps working offline",
	Long: `fintrack records income and expenses in a spreadsheet-backed remote ledger.

Reads are served from a local snapshot whenever the remote cannot be reached,
and changes made while offline are queued and replayed in order once the
connection comes back.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsApp(cmd) {
			return nil
		}
		if current != nil {
			_ = current.Close()
			current = nil
		}
		a, err := newApp(cmd.Context(), appOptions{
			ConfigPath: configPath,
			Offline:    forceOff,
			LogLevel:   logLevel,
		})
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		err := current.Close()
		current = nil
		return err
	},
}

// needsApp reports whether cmd runs against the store and remote.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipApp] == "true" {
			return false
		}
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./fintrack.toml or the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&forceOff, "offline", false, "Treat the remote as unreachable")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "ledger", Title: "Ledger:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if current != nil {
			_ = current.Close()
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
