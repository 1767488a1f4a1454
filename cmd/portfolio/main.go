package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/spf13/cobra"
)

// For testing
var (
	osExit = os.Exit
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Portfolio site API",
	Long: `Backend for a personal portfolio site: contact form submissions,
the chat assistant and the admin endpoints behind them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnvFile(cmd, envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", config.EnvOrDefault("ENV_FILE", ".env"), "Path to .env file")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(hashKeyCmd)
	rootCmd.AddCommand(setupCmd)
}

// loadEnvFile loads path into the environment when it exists. Variables
// already set take precedence.
func loadEnvFile(cmd *cobra.Command, path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: error loading %s: %v\n", path, err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		osExit(1)
	}
}
