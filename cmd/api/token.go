package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RomanRochniak/CapstoneGym/internal/middleware"
)

func newTokenCmd() *cobra.Command {
	var (
		userID   uint
		username string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return errors.New("--user is required")
			}
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			token, err := middleware.IssueToken(cfg.JWTSecret, userID, username, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().UintVarP(&userID, "user", "u", 0, "user id to put in the token subject")
	cmd.Flags().StringVar(&username, "username", "", "optional username claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
