package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantage-compute/vantage-cli/pkg/cache"
	"github.com/vantage-compute/vantage-cli/pkg/gql"
	"github.com/vantage-compute/vantage-cli/pkg/output"
)

func NewQueryCommand() *cobra.Command {
	var (
		variablesJSON string
		noAuth        bool
	)
	cmd := &cobra.Command{
		Use:   "query <operation>",
		Short: "Execute a GraphQL operation against the Vantage API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			settings := rt.Settings()
			profile := rt.Profile()
			log := rt.Logger()

			var variables map[string]any
			if variablesJSON != "" {
				if err := json.Unmarshal([]byte(variablesJSON), &variables); err != nil {
					return fmt.Errorf("invalid --variables JSON: %w", err)
				}
			}

			opts := []gql.Option{
				gql.WithURL(settings.GraphQLURL()),
				gql.WithLogger(log),
			}
			if !noAuth {
				manager, err := rt.Manager()
				if err != nil {
					return err
				}
				persona, err := manager.ExtractPersona(cmd.Context(), profile)
				if err != nil {
					if store, sErr := rt.Store(); sErr == nil {
						if _, lErr := store.Load(profile); lErr != nil {
							return cache.ErrNotLoggedIn
						}
					}
					return err
				}
				opts = append(opts,
					gql.WithPersona(persona),
					gql.WithManager(profile, manager),
				)
			}

			client, err := gql.New(opts...)
			if err != nil {
				return err
			}
			data, err := client.Execute(cmd.Context(), args[0], variables, !noAuth)
			if err != nil {
				return err
			}

			format := rt.OutputFormat()
			if format == output.FormatTable {
				format = output.FormatJSON
			}
			return output.WriteObject(rt.Writer(), format, data)
		},
	}
	cmd.Flags().StringVar(&variablesJSON, "variables", "", "Operation variables as a JSON object")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Send the request without authentication")
	return cmd
}
