package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-compute/vantage-cli/pkg/cache"
	"github.com/vantage-compute/vantage-cli/pkg/config"
)

func testSettings(serverURL string) config.Settings {
	return config.Settings{
		APIBaseURL:      serverURL,
		OIDCBaseURL:     serverURL,
		OIDCClientID:    "test-client",
		OIDCMaxPollTime: 60,
	}
}

// tokenEndpoint returns a token-endpoint stub plus a counter of exchanges.
func tokenEndpoint(t *testing.T, reply map[string]string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-client", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestRefreshNoRefreshToken(t *testing.T) {
	manager := NewManager(cache.NewMemoryStore(), testSettings("http://unused"), nil, nil)

	_, err := manager.Refresh(context.Background(), "default", cache.TokenSet{AccessToken: "a"})
	assert.ErrorIs(t, err, ErrRefreshImpossible)
}

func TestRefreshExchangesAndPersists(t *testing.T) {
	server, hits := tokenEndpoint(t, map[string]string{
		"access_token": "new-access", "refresh_token": "new-refresh", "token_type": "bearer",
	}, http.StatusOK)

	store := cache.NewMemoryStore()
	manager := NewManager(store, testSettings(server.URL), server.Client(), nil)

	original := cache.TokenSet{AccessToken: "old-access", RefreshToken: "old-refresh"}
	next, err := manager.Refresh(context.Background(), "default", original)
	require.NoError(t, err)

	assert.Equal(t, "new-access", next.AccessToken)
	assert.Equal(t, "new-refresh", next.RefreshToken)
	assert.Equal(t, "old-access", original.AccessToken)
	assert.Equal(t, int32(1), hits.Load())

	persisted, err := store.Load("default")
	require.NoError(t, err)
	assert.Equal(t, next, persisted)
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	server, _ := tokenEndpoint(t, map[string]string{
		"access_token": "new-access", "token_type": "bearer",
	}, http.StatusOK)

	store := cache.NewMemoryStore()
	manager := NewManager(store, testSettings(server.URL), server.Client(), nil)

	next, err := manager.Refresh(context.Background(), "default", cache.TokenSet{AccessToken: "a", RefreshToken: "old-refresh"})
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", next.RefreshToken)
}

func TestRefreshFailure(t *testing.T) {
	server, _ := tokenEndpoint(t, map[string]string{
		"error": "invalid_grant", "error_description": "session expired",
	}, http.StatusBadRequest)

	store := cache.NewMemoryStore()
	manager := NewManager(store, testSettings(server.URL), server.Client(), nil)

	_, err := manager.Refresh(context.Background(), "default", cache.TokenSet{AccessToken: "a", RefreshToken: "r"})
	assert.ErrorIs(t, err, ErrRefreshFailed)

	_, err = store.Load("default")
	assert.ErrorIs(t, err, cache.ErrNotLoggedIn)
}

type failingStore struct {
	cache.Store
}

func (s *failingStore) Save(string, cache.TokenSet) error {
	return errors.New("disk full")
}

func TestRefreshPersistFailure(t *testing.T) {
	server, _ := tokenEndpoint(t, map[string]string{
		"access_token": "new-access", "token_type": "bearer",
	}, http.StatusOK)

	manager := NewManager(&failingStore{Store: cache.NewMemoryStore()}, testSettings(server.URL), server.Client(), nil)

	_, err := manager.Refresh(context.Background(), "default", cache.TokenSet{AccessToken: "a", RefreshToken: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist")
}

func TestRefreshIfNeededEmptyToken(t *testing.T) {
	manager := NewManager(cache.NewMemoryStore(), testSettings("http://unused"), nil, nil)

	tokens, err := manager.RefreshIfNeeded(context.Background(), "default", cache.TokenSet{RefreshToken: "r"})
	require.NoError(t, err)
	assert.Empty(t, tokens.AccessToken)
	assert.Equal(t, "r", tokens.RefreshToken)
}

func TestRefreshIfNeededValidToken(t *testing.T) {
	server, hits := tokenEndpoint(t, nil, http.StatusOK)
	manager := NewManager(cache.NewMemoryStore(), testSettings(server.URL), server.Client(), nil)

	valid := makeToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	tokens, err := manager.RefreshIfNeeded(context.Background(), "default", cache.TokenSet{AccessToken: valid, RefreshToken: "r"})
	require.NoError(t, err)
	assert.Equal(t, valid, tokens.AccessToken)
	assert.Equal(t, int32(0), hits.Load())
}

func TestRefreshIfNeededExpiredToken(t *testing.T) {
	server, hits := tokenEndpoint(t, map[string]string{
		"access_token": "new-access", "token_type": "bearer",
	}, http.StatusOK)
	manager := NewManager(cache.NewMemoryStore(), testSettings(server.URL), server.Client(), nil)

	expired := makeToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	tokens, err := manager.RefreshIfNeeded(context.Background(), "default", cache.TokenSet{AccessToken: expired, RefreshToken: "r"})
	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRefreshIfNeededExpiredWithoutRefreshToken(t *testing.T) {
	manager := NewManager(cache.NewMemoryStore(), testSettings("http://unused"), nil, nil)

	expired := makeToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	_, err := manager.RefreshIfNeeded(context.Background(), "default", cache.TokenSet{AccessToken: expired})
	assert.ErrorIs(t, err, ErrRefreshImpossible)
}

func TestExtractPersonaNotLoggedIn(t *testing.T) {
	manager := NewManager(cache.NewMemoryStore(), testSettings("http://unused"), nil, nil)

	_, err := manager.ExtractPersona(context.Background(), "default")
	assert.ErrorIs(t, err, cache.ErrNotLoggedIn)
}

func TestExtractPersona(t *testing.T) {
	store := cache.NewMemoryStore()
	token := makeToken(t, jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"azp":   "test-client",
		"email": "user@example.com",
	})
	require.NoError(t, store.Save("default", cache.TokenSet{AccessToken: token, RefreshToken: "r"}))

	manager := NewManager(store, testSettings("http://unused"), nil, nil)
	persona, err := manager.ExtractPersona(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", persona.Identity.Email)
	assert.Equal(t, "test-client", persona.Identity.ClientID)
	assert.Equal(t, token, persona.TokenSet.AccessToken)
}

func TestExtractPersonaRefreshesExpiredToken(t *testing.T) {
	refreshed := makeToken(t, jwt.MapClaims{
		"exp":   time.Now().Add(time.Hour).Unix(),
		"azp":   "test-client",
		"email": "user@example.com",
	})
	server, _ := tokenEndpoint(t, map[string]string{
		"access_token": refreshed, "token_type": "bearer",
	}, http.StatusOK)

	store := cache.NewMemoryStore()
	expired := makeToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, store.Save("default", cache.TokenSet{AccessToken: expired, RefreshToken: "r"}))

	manager := NewManager(store, testSettings(server.URL), server.Client(), nil)
	persona, err := manager.ExtractPersona(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, refreshed, persona.TokenSet.AccessToken)

	persisted, err := store.Load("default")
	require.NoError(t, err)
	assert.Equal(t, refreshed, persisted.AccessToken)
}
