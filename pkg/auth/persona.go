package auth

import "github.com/vantage-compute/vantage-cli/pkg/cache"

// Persona aggregates a validated token set with the identity derived from it.
// It represents "the currently authenticated user" for one command invocation
// and is never itself persisted; only its token set is.
type Persona struct {
	TokenSet cache.TokenSet
	Identity IdentityData
}
