package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/daemon"
	"github.com/fintrack/fintrack/internal/dashboard"
	"github.com/fintrack/fintrack/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Watch the quick-add inbox and refresh on a schedule (foreground)",
	Long: `Run fintrack unattended in the foreground.

The daemon:
  1. Submits every quick-add file dropped into the inbox
  2. Moves files that can never be delivered to inbox/rejected/
  3. Fetches the full list on the refresh schedule, replaying queued changes

A quick-add file is JSON: {"amount": "4.50", "note": "coffee", "type": "expense"}

With --dashboard the WebSocket dashboard is served from the same process.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		return runDaemon(cmd, withDashboard)
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "sync",
	Short:   "Run the daemon with the real-time WebSocket dashboard",
	Long: `Start the daemon together with a WebSocket dashboard.

WebSocket messages include:
- status: busy flag, connectivity and queue length, sent on connect
- busy: a remote call started or finished
- queued: a change was queued while offline
- delivered / failed: a remote call finished
- drained: a replay pass finished
- snapshot: the local snapshot was refreshed

Example usage:
  fintrack dashboard               # Port from dashboard.port (default 8080)
  fintrack dashboard --port 9000

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, true)
	},
}

func runDaemon(cmd *cobra.Command, withDashboard bool) error {
	a := current
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(a.coord, &daemon.Config{
		Inbox:           a.cfg.Daemon.Inbox,
		RefreshSchedule: a.cfg.Daemon.RefreshSchedule,
		Logger:          a.logger,
	})
	if err != nil {
		return err
	}

	if withDashboard {
		port := a.cfg.Dashboard.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		server := dashboard.NewServer(&dashboard.Config{Port: port, Source: a.coord, Logger: a.logger})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
		defer func() {
			if err := server.Stop(); err != nil {
				a.logger.WithError(err).Warn("dashboard shutdown failed")
			}
		}()

		handler := dashboard.NewHandler(server, a.logger)
		a.events.Subscribe(handler)
		unregister := a.coord.OnBusyChange(handler.OnBusy)
		defer unregister()

		fmt.Printf("%s Dashboard on http://%s\n", ui.RenderAccent("📡"), server.GetAddr())
		fmt.Printf("   WebSocket: ws://%s/ws\n", server.GetAddr())
	}

	fmt.Printf("%s Starting fintrack daemon...\n", ui.RenderAccent("🚀"))
	fmt.Printf("   Inbox: %s\n", a.cfg.Daemon.Inbox)
	fmt.Printf("   Refresh: %s\n", a.cfg.Daemon.RefreshSchedule)
	fmt.Printf("   Store: %s\n", a.store.Path())
	fmt.Printf("\nPress Ctrl+C to stop\n\n")

	if err := d.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("daemon stopped with error: %w", err)
	}
	if ctx.Err() == context.Canceled {
		fmt.Println("\nDaemon stopped")
	}
	return nil
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Also serve the WebSocket dashboard")
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (default: dashboard.port)")
	dashboardCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: dashboard.port)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(dashboardCmd)
}
