package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-alert-dispatch/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <sender-id>",
	Short: "Issue an API token for a sender",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("name", "", "Display name carried in the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	authn, err := auth.NewAuthenticator(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("name")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := authn.IssueToken(args[0], name, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
