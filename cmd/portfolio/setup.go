package main

import (
	"fmt"

	"github.com/sofatutor/portfolio-api/internal/auth"
	"github.com/sofatutor/portfolio-api/internal/setup"
	"github.com/spf13/cobra"
)

// Setup command flags
var setupOpts setup.Options

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a starter .env file",
	Long: `Write a .env with a SQLite database, a hashed admin key and optional
OpenAI and email settings. A random admin key is generated unless --admin-key
is given; it is printed once and only its hash is stored.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	f := setupCmd.Flags()
	f.StringVar(&setupOpts.EnvPath, "output", ".env", "Path of the file to write")
	f.StringVar(&setupOpts.ListenAddr, "addr", ":8080", "Address to listen on")
	f.StringVar(&setupOpts.DatabasePath, "db", "./data/portfolio.db", "Path to SQLite database")
	f.StringVar(&setupOpts.OpenAIAPIKey, "openai-key", "", "OpenAI API key (optional)")
	f.StringVar(&setupOpts.EmailTo, "email-to", "", "Address that receives contact notifications")
	f.StringVar(&setupOpts.EmailFrom, "email-from", "", "Sender address for notifications")
	f.StringVar(&setupOpts.TrustedProxies, "trusted-proxies", "", "Comma-separated proxy IPs or CIDRs whose X-Forwarded-For is honored")
	f.StringVar(&setupOpts.AdminKey, "admin-key", "", "Admin key to hash (generated when empty)")
	f.IntVar(&setupOpts.BcryptCost, "cost", auth.DefaultBcryptCost, "bcrypt cost for the admin key")
	f.BoolVar(&setupOpts.Overwrite, "force", false, "Overwrite an existing file")
}

func runSetup(cmd *cobra.Command, args []string) error {
	res, err := setup.Run(setupOpts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", res.Path)
	if setupOpts.AdminKey == "" {
		fmt.Fprintf(out, "Admin key (shown once, store it safely): %s\n", res.AdminKey)
	}
	if res.Values["EMAIL_PROVIDER"] == "log" {
		fmt.Fprintln(out, "Email notifications are logged; set EMAIL_PROVIDER=smtp or http to deliver them.")
	}
	return nil
}
