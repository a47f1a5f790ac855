// Package cli implements the alert-dispatch command line.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-alert-dispatch/internal/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "alert-dispatch",
	Short: "Community alert dispatch service",
	Long: `alert-dispatch issues community alerts and delivers them over email,
SMS and push, recording every delivery attempt in an append-only ledger.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
}

func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}
	return config.Load()
}
