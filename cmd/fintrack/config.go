package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fintrack/fintrack/internal/config"
	"github.com/fintrack/fintrack/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Manage the fintrack config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	Long: `Write a TOML config file holding every setting at its default.

Flags fill in the remote endpoint and token. Every key can also be set with a
FINTRACK_ environment variable, e.g. FINTRACK_API_AUTH_TOKEN.`,
	Annotations: map[string]string{skipApp: "true"},
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = filepath.Join(config.Dir(), config.FileName+".toml")
		}
		force, _ := cmd.Flags().GetBool("force")

		cfg := config.Default()
		cfg.API.Endpoint, _ = cmd.Flags().GetString("endpoint")
		cfg.API.AuthToken, _ = cmd.Flags().GetString("token")

		if err := cfg.WriteFile(path, force); err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		if cfg.API.Endpoint == "" {
			fmt.Printf("%s Set api.endpoint before syncing\n", ui.RenderWarn("⚠"))
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("endpoint", "", "Remote API endpoint URL")
	configInitCmd.Flags().String("token", "", "Remote API auth token")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
