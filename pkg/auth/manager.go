package auth

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/vantage-compute/vantage-cli/pkg/cache"
	"github.com/vantage-compute/vantage-cli/pkg/config"
)

// Manager drives the token lifecycle for one profile store: expiry checks,
// refresh-token exchanges, and persona construction. Every successful
// exchange is persisted before it is returned, so the on-disk tokens and the
// in-memory set can never disagree after a refresh.
type Manager struct {
	store    cache.Store
	settings config.Settings
	http     *http.Client
	log      *zap.SugaredLogger
}

func NewManager(store cache.Store, settings config.Settings, httpClient *http.Client, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{store: store, settings: settings, http: httpClient, log: log}
}

// Refresh performs an unconditional refresh-token exchange and persists the
// result. It returns a new token set; the input is left untouched. The
// refresh token is replaced only when the provider supplies a new one.
func (m *Manager) Refresh(ctx context.Context, profile string, tokens cache.TokenSet) (cache.TokenSet, error) {
	if tokens.RefreshToken == "" {
		return tokens, ErrRefreshImpossible
	}
	if m.http != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.http)
	}
	cfg := oauth2.Config{
		ClientID: m.settings.OIDCClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.settings.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	m.log.Debugw("requesting refreshed access token", "url", cfg.Endpoint.TokenURL, "profile", profile)

	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tokens.RefreshToken})
	refreshed, err := src.Token()
	if err != nil {
		m.log.Debugw("token refresh failed", "profile", profile, "error", err)
		return tokens, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	next := cache.TokenSet{AccessToken: refreshed.AccessToken, RefreshToken: tokens.RefreshToken}
	if refreshed.RefreshToken != "" {
		next.RefreshToken = refreshed.RefreshToken
	}
	// A refresh that is not persisted is a correctness bug: a later process
	// would present the stale token again.
	if err := m.store.Save(profile, next); err != nil {
		return tokens, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}
	m.log.Debugw("successfully refreshed access token", "profile", profile)
	return next, nil
}

// RefreshIfNeeded refreshes only when the access token is missing its expiry
// headroom. An empty access token is returned unchanged without ever being
// decoded; an expired token without a refresh token is a fatal condition that
// requires a fresh login.
func (m *Manager) RefreshIfNeeded(ctx context.Context, profile string, tokens cache.TokenSet) (cache.TokenSet, error) {
	if tokens.AccessToken == "" {
		return tokens, nil
	}
	if !IsExpired(tokens.AccessToken, DefaultExpiryBuffer) {
		return tokens, nil
	}
	if tokens.RefreshToken == "" {
		return tokens, ErrRefreshImpossible
	}
	m.log.Debugw("access token is expired, attempting refresh", "profile", profile)
	return m.Refresh(ctx, profile, tokens)
}

// ExtractPersona loads the profile's cached tokens, refreshes them if needed,
// and derives the identity, persisting the (possibly refreshed) token set so
// the cache always matches what the persona carries.
func (m *Manager) ExtractPersona(ctx context.Context, profile string) (*Persona, error) {
	tokens, err := m.store.Load(profile)
	if err != nil {
		return nil, err
	}
	tokens, err = m.RefreshIfNeeded(ctx, profile, tokens)
	if err != nil {
		return nil, err
	}
	identity, err := ExtractIdentity(tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(profile, tokens); err != nil {
		return nil, fmt.Errorf("failed to persist tokens: %w", err)
	}
	m.log.Debugw("persona extracted", "profile", profile, "client_id", identity.ClientID)
	return &Persona{TokenSet: tokens, Identity: identity}, nil
}
