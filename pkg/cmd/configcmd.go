package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vantage-compute/vantage-cli/pkg/config"
	"github.com/vantage-compute/vantage-cli/pkg/output"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration and profiles",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigUseProfileCommand(),
		newConfigSetCommand(),
		newConfigProfilesCommand(),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
			}
			cfg := config.DefaultConfig()
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Wrote default config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the active configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format := rt.OutputFormat()
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.WriteObject(rt.Writer(), format, rt.cfg)
		},
	}
}

func newConfigUseProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			name := args[0]
			if rt.cfg.Profiles == nil {
				rt.cfg.Profiles = map[string]config.Settings{}
			}
			if _, ok := rt.cfg.Profiles[name]; !ok {
				rt.cfg.Profiles[name] = config.DefaultSettings()
			}
			rt.cfg.CurrentProfile = name
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Switched to profile %q.\n", name)
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value on the active profile",
		Long: `Set a configuration value on the active profile.

Supported keys: api-base-url, oidc-base-url, oidc-client-id, oidc-max-poll-time, tunnel-api-url`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			profile := rt.Profile()
			if rt.cfg.Profiles == nil {
				rt.cfg.Profiles = map[string]config.Settings{}
			}
			settings, ok := rt.cfg.Profiles[profile]
			if !ok {
				settings = config.DefaultSettings()
			}

			key, value := args[0], args[1]
			switch key {
			case "api-base-url":
				settings.APIBaseURL = value
			case "oidc-base-url":
				settings.OIDCBaseURL = value
			case "oidc-client-id":
				settings.OIDCClientID = value
			case "oidc-max-poll-time":
				seconds, err := strconv.Atoi(value)
				if err != nil || seconds <= 0 {
					return fmt.Errorf("oidc-max-poll-time must be a positive number of seconds, got %q", value)
				}
				settings.OIDCMaxPollTime = seconds
			case "tunnel-api-url":
				settings.TunnelAPIURL = value
			default:
				return fmt.Errorf("unknown config key %q", key)
			}

			rt.cfg.Profiles[profile] = settings
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			fmt.Fprintf(rt.Writer(), "Set %s for profile %q.\n", key, profile)
			return nil
		},
	}
}

func newConfigProfilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			current := rt.cfg.CurrentProfileOrDefault()
			for _, name := range rt.cfg.ProfileNames() {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(rt.Writer(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
