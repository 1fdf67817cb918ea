// Package cmd builds the cobra command tree for the vantage CLI. Shared
// runtime state (config, profile selection, token storage, logging) is
// resolved once in the root command's PersistentPreRunE and carried in the
// command context so subcommands stay thin.
package cmd
