package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token for a user",
		Long:  "Signs a bearer token with the configured auth.jwt_secret for use with the curriculum API server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(userFlag)
			if err != nil || userID == uuid.Nil {
				return fmt.Errorf("invalid --user %q: must be a non-nil UUID", userFlag)
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return fmt.Errorf("initialize JWT service: %w", err)
			}

			token, err := jwtService.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "User UUID the token authenticates")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
