package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-compute/vantage-cli/pkg/cache"
)

const (
	deviceAuthPath = "/realms/vantage/protocol/openid-connect/auth/device"
	tokenPath      = "/realms/vantage/protocol/openid-connect/token"
)

// deviceServer stubs the device-authorization and token endpoints. Each call
// to the token endpoint pops the next scripted reply.
func deviceServer(t *testing.T, deviceReply map[string]any, tokenReplies []map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(deviceAuthPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-client", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(deviceReply))
	})
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, deviceCodeGrantType, r.Form.Get("grant_type"))
		assert.Equal(t, "scripted-device-code", r.Form.Get("device_code"))

		idx := int(tokenHits.Add(1)) - 1
		require.Less(t, idx, len(tokenReplies), "more token polls than scripted replies")
		reply := tokenReplies[idx]
		w.Header().Set("Content-Type", "application/json")
		if _, isErr := reply["error"]; isErr {
			w.WriteHeader(http.StatusBadRequest)
		}
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &tokenHits
}

// fakeClock drives the poll loop deterministically. Sleeps advance the clock
// instead of blocking, and each requested duration is recorded.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
	return nil
}

func defaultDeviceReply() map[string]any {
	return map[string]any{
		"device_code":               "scripted-device-code",
		"user_code":                 "ABCD-EFGH",
		"verification_uri_complete": "https://auth.example.com/device?user_code=ABCD-EFGH",
		"expires_in":                600,
		"interval":                  5,
	}
}

func newTestFlow(t *testing.T, server *httptest.Server, out *bytes.Buffer) (*DeviceFlow, *fakeClock) {
	t.Helper()
	flow := NewDeviceFlow(testSettings(server.URL), server.Client(), out, nil)
	clock := newFakeClock()
	flow.sleep = clock.sleep
	flow.now = clock.now
	return flow, clock
}

func TestFetchAuthTokensSuccess(t *testing.T) {
	server, hits := deviceServer(t, defaultDeviceReply(), []map[string]any{
		{"error": "authorization_pending"},
		{"error": "authorization_pending"},
		{"access_token": "access-abc", "refresh_token": "refresh-def"},
	})

	var out bytes.Buffer
	flow, clock := newTestFlow(t, server, &out)

	tokens, err := flow.FetchAuthTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cache.TokenSet{AccessToken: "access-abc", RefreshToken: "refresh-def"}, tokens)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.slept)
	assert.Contains(t, out.String(), "https://auth.example.com/device?user_code=ABCD-EFGH")
}

func TestFetchAuthTokensSlowDown(t *testing.T) {
	server, _ := deviceServer(t, defaultDeviceReply(), []map[string]any{
		{"error": "slow_down"},
		{"error": "authorization_pending"},
		{"access_token": "access-abc"},
	})

	var out bytes.Buffer
	flow, clock := newTestFlow(t, server, &out)

	tokens, err := flow.FetchAuthTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-abc", tokens.AccessToken)
	// Slow-down doubles the wait once; the base interval stays 5s.
	assert.Equal(t, []time.Duration{10 * time.Second, 5 * time.Second}, clock.slept)
}

func TestFetchAuthTokensDenied(t *testing.T) {
	server, hits := deviceServer(t, defaultDeviceReply(), []map[string]any{
		{"error": "access_denied", "error_description": "user rejected the request"},
	})

	var out bytes.Buffer
	flow, clock := newTestFlow(t, server, &out)

	_, err := flow.FetchAuthTokens(context.Background())
	var denied *DeviceDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "access_denied", denied.Code)
	assert.Equal(t, "user rejected the request", denied.Description)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, clock.slept)
}

func TestFetchAuthTokensTimeout(t *testing.T) {
	pending := make([]map[string]any, 0, 16)
	for i := 0; i < 16; i++ {
		pending = append(pending, map[string]any{"error": "authorization_pending"})
	}
	server, _ := deviceServer(t, defaultDeviceReply(), pending)

	var out bytes.Buffer
	flow, _ := newTestFlow(t, server, &out)
	flow.settings.OIDCMaxPollTime = 12

	_, err := flow.FetchAuthTokens(context.Background())
	assert.ErrorIs(t, err, ErrLoginTimeout)
}

func TestFetchAuthTokensContextCanceled(t *testing.T) {
	server, hits := deviceServer(t, defaultDeviceReply(), nil)

	var out bytes.Buffer
	flow, _ := newTestFlow(t, server, &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := flow.FetchAuthTokens(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetchAuthTokensDefaultInterval(t *testing.T) {
	reply := defaultDeviceReply()
	delete(reply, "interval")
	server, _ := deviceServer(t, reply, []map[string]any{
		{"error": "authorization_pending"},
		{"access_token": "access-abc"},
	})

	var out bytes.Buffer
	flow, clock := newTestFlow(t, server, &out)

	_, err := flow.FetchAuthTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{defaultPollInterval}, clock.slept)
}

func TestFetchAuthTokensDeviceRequestFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown client", http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	var out bytes.Buffer
	flow, _ := newTestFlow(t, server, &out)

	_, err := flow.FetchAuthTokens(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device authorization failed")
}

func TestFetchAuthTokensMissingAccessToken(t *testing.T) {
	server, _ := deviceServer(t, defaultDeviceReply(), []map[string]any{
		{"token_type": "bearer"},
	})

	var out bytes.Buffer
	flow, _ := newTestFlow(t, server, &out)

	_, err := flow.FetchAuthTokens(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access token")
}
