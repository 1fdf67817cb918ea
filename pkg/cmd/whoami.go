package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/vantage-compute/vantage-cli/pkg/auth"
	"github.com/vantage-compute/vantage-cli/pkg/output"
)

func NewWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity of the currently authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			out := rt.Writer()
			profile := rt.Profile()

			manager, err := rt.Manager()
			if err != nil {
				return err
			}
			persona, err := manager.ExtractPersona(cmd.Context(), profile)
			if err != nil {
				info := output.IdentityInfo{Profile: profile, LoggedIn: false}
				if rt.OutputFormat() == output.FormatTable {
					output.WriteIdentityTable(out, info)
					return nil
				}
				return output.WriteObject(out, rt.OutputFormat(), info)
			}

			info := output.IdentityInfo{
				Profile:  profile,
				Email:    persona.Identity.Email,
				ClientID: persona.Identity.ClientID,
				LoggedIn: true,
			}
			if claims, err := auth.Claims(persona.TokenSet.AccessToken); err == nil {
				if sub, ok := claims["sub"].(string); ok {
					info.UserID = sub
				}
				if name, ok := claims["name"].(string); ok {
					info.Name = name
				}
				if iat, ok := claims["iat"].(float64); ok {
					info.TokenIssuedAt = time.Unix(int64(iat), 0).UTC().Format(time.RFC3339)
				}
				if exp, ok := claims["exp"].(float64); ok {
					expiry := time.Unix(int64(exp), 0).UTC()
					info.TokenExpiresAt = expiry.Format(time.RFC3339)
					info.TokenExpired = !expiry.After(time.Now())
				}
			}

			if rt.OutputFormat() == output.FormatTable {
				output.WriteIdentityTable(out, info)
				return nil
			}
			return output.WriteObject(out, rt.OutputFormat(), info)
		},
	}
}
