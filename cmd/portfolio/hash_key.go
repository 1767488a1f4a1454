package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sofatutor/portfolio-api/internal/auth"
	"github.com/sofatutor/portfolio-api/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	hashKeyCost     int
	hashKeyGenerate bool
)

// readPassword is swapped in tests.
var readPassword = func() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal: pass the key as an argument")
	}
	fmt.Fprint(os.Stderr, "Admin key: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Hash an admin key for ADMIN_API_KEY",
	Long: `Print a bcrypt hash of an admin key in the form accepted by ADMIN_API_KEY.
Without an argument the key is read from the terminal without echo.
With --generate a random key is created and printed above its hash.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashKey,
}

func init() {
	hashKeyCmd.Flags().IntVar(&hashKeyCost, "cost", config.EnvIntOrDefault("ADMIN_KEY_BCRYPT_COST", auth.DefaultBcryptCost), "bcrypt cost")
	hashKeyCmd.Flags().BoolVar(&hashKeyGenerate, "generate", false, "Generate a random key instead of reading one")
}

func runHashKey(cmd *cobra.Command, args []string) error {
	var key string
	switch {
	case hashKeyGenerate:
		if len(args) == 1 {
			return errors.New("--generate does not take a key argument")
		}
		generated, err := auth.GenerateKey(24)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Key: "+generated)
		key = generated
	case len(args) == 1:
		key = args[0]
	default:
		var err error
		if key, err = readPassword(); err != nil {
			return err
		}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key must not be empty")
	}

	hashed, err := auth.HashKey(key, hashKeyCost)
	if err != nil {
		return err
	}
	if hashKeyGenerate {
		fmt.Fprintln(cmd.OutOrStdout(), "ADMIN_API_KEY="+hashed)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), hashed)
	return nil
}
