// Package cache persists per-profile token sets for the vantage CLI, with
// file, OS-keyring, and in-memory store backends behind a common interface.
package cache
