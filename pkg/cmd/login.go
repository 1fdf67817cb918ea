package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantage-compute/vantage-cli/pkg/auth"
	"github.com/vantage-compute/vantage-cli/pkg/cache"
)

func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in via the OAuth device authorization flow",
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
			log := rt.Logger()

			tokens, err := store.Load(profile)
			if err == nil && tokens.AccessToken != "" && !auth.IsExpired(tokens.AccessToken, auth.DefaultExpiryBuffer) {
				email := "an authenticated user"
				if identity, idErr := auth.ExtractIdentity(tokens.AccessToken); idErr == nil && identity.Email != "" {
					email = identity.Email
				}
				fmt.Fprintf(out, "Already logged in to profile %q as %s.\n", profile, email)
				fmt.Fprintln(out, "Run 'vantage logout' first to log in as a different user.")
				return nil
			}
			if err != nil && !errors.Is(err, cache.ErrNotLoggedIn) {
				return err
			}

			flow := auth.NewDeviceFlow(rt.Settings(), nil, out, log)
			fresh, err := flow.FetchAuthTokens(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Save(profile, fresh); err != nil {
				return err
			}

			manager := auth.NewManager(store, rt.Settings(), nil, log)
			persona, err := manager.ExtractPersona(cmd.Context(), profile)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Logged in to profile %q as %s.\n", profile, persona.Identity.Email)
			return nil
		},
	}
}
