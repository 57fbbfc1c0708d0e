package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quiz-attempt-service/internal/domain"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewTokenCmd signs a development bearer token with the configured secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		who domain.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwtSecret (JWT_SECRET) is required")
			}
			if who.UserID == "" {
				return errors.New("--user is required")
			}
			tok, err := transport.NewAuthenticator(cfg.Auth.JWTSecret).Issue(who, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&who.UserID, "user", "", "user id (sub claim)")
	cmd.Flags().StringVar(&who.Role, "role", "user", "role claim")
	cmd.Flags().StringVar(&who.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&who.AvatarURL, "avatar", "", "avatar url")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime")
	return cmd
}
