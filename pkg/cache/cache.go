package cache

import "errors"

// ErrNotLoggedIn indicates no cached access token exists for the profile.
var ErrNotLoggedIn = errors.New("not logged in; please log in with the 'vantage login' command first")

// TokenSet is an access/refresh token pair. An empty AccessToken means no
// session exists; an empty RefreshToken means the session cannot be silently
// refreshed. Values are treated as immutable: refresh operations return a new
// TokenSet rather than mutating a shared one.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Store persists token sets per profile. Implementations must make Clear
// idempotent and must report a missing access token as ErrNotLoggedIn.
type Store interface {
	Load(profile string) (TokenSet, error)
	Save(profile string, tokens TokenSet) error
	Clear(profile string) error
}
