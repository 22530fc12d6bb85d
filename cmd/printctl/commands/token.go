package commands

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/erp/printdispatch/internal/infrastructure/auth"
)

var tokenTTL time.Duration

var errJWTSecretMissing = errors.New("jwt.secret is not configured")

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue a bearer token for the print API",
	Long: `token signs a bearer token for <subject> with the configured jwt.secret.
Clients send it as "Authorization: Bearer <token>" when jwt.enabled is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return errJWTSecretMissing
		}
		token, expiresAt, err := auth.NewJWTService(cfg.JWT).GenerateToken(args[0], tokenTTL)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"token":      token,
			"token_type": "Bearer",
			"expires_at": expiresAt.UTC().Format(time.RFC3339),
		})
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default jwt.token_expiration)")
	rootCmd.AddCommand(tokenCmd)
}
