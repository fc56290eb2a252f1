package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cert-studio/studio-backend/pkg/auth"
)

var tokenFlags struct {
	email string
	ttl   time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the template API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Security.JWTSecret == "" {
			return errors.New("security.jwt_secret is not configured")
		}
		token, err := auth.NewVerifier(cfg.Security.JWTSecret).Issue(tokenFlags.email, tokenFlags.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenFlags.email, "email", "", "owner email")
	tokenCmd.Flags().DurationVar(&tokenFlags.ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("email")
}
