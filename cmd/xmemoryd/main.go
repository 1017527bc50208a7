// Package main provides the xmemoryd server binary: the cloud-memory sync
// and versioning API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xmemory/xmemory/internal/config"
	"github.com/xmemory/xmemory/internal/db"
)

// version is set via -ldflags at build time.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "xmemoryd",
	Short: "Cloud-memory sync and versioning service for AI assistant exports",
	Long: `xmemoryd stores ChatGPT/Claude/Gemini memory exports, keeps an
append-only version history with per-plan retention, and serves the
dashboard's diff, restore, and download operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "xmemory.toml", "path to config file")
	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			database, err := db.Open(cfg.Data.Dir)
			if err != nil {
				return err
			}
			defer database.Close()

			migrator := db.NewMigrator(database.DB)
			if err := migrator.Up(); err != nil {
				return err
			}
			current, err := migrator.CurrentVersion()
			if err != nil {
				return err
			}
			fmt.Printf("schema at version %d\n", current)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the xmemoryd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("xmemoryd", version)
		},
	}
}
