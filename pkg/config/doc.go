// Package config defines the per-profile settings for the vantage CLI and the
// YAML config file they are loaded from, including the derived identity
// provider and GraphQL endpoint URLs.
package config
