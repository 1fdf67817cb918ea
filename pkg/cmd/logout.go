package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantage-compute/vantage-cli/pkg/auth"
	"github.com/vantage-compute/vantage-cli/pkg/cache"
)

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear cached credentials for the active profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			store, err := rt.Store()
			if err != nil {
				return err
			}
			profile := rt.Profile()
			out := rt.Writer()

			tokens, err := store.Load(profile)
			switch {
			case err == nil:
				email := ""
				if identity, idErr := auth.ExtractIdentity(tokens.AccessToken); idErr == nil {
					email = identity.Email
				}
				if email != "" {
					fmt.Fprintf(out, "Logging out %s from profile %q.\n", email, profile)
				}
			case errors.Is(err, cache.ErrNotLoggedIn):
				fmt.Fprintf(out, "No active session for profile %q.\n", profile)
			default:
				return err
			}

			if err := store.Clear(profile); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared credentials for profile %q.\n", profile)
			return nil
		},
	}
}
