package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"service-note-backend/internal/auth"
)

func newTokenCommand() *cobra.Command {
	var (
		email  string
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a helper token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			token, err := auth.GenerateToken([]byte(secret), email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Helper email to put in the token")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (defaults to JWT_SECRET)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
