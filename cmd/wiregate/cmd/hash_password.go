package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sentinel-Gate/wiregate/internal/domain/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate an argon2id hash for a Basic auth user",
	Long: `Generate an argon2id hash of a password for auth.users[].password_hash.

Without an argument the password is read from the first line of stdin,
which keeps it out of shell history.

Examples:
  wiregate hash-password "correct horse"
  printf '%s\n' "$PASSWORD" | wiregate hash-password`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			sc := bufio.NewScanner(cmd.InOrStdin())
			if sc.Scan() {
				password = strings.TrimRight(sc.Text(), "\r")
			}
			if err := sc.Err(); err != nil {
				return err
			}
		}
		if password == "" {
			return errors.New("empty password")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}
