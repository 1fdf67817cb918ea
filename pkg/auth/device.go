package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-compute/vantage-cli/pkg/cache"
	"github.com/vantage-compute/vantage-cli/pkg/config"
)

const (
	defaultPollInterval = 5 * time.Second

	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// DeviceCodeData is the device authorization response, consumed for the
// lifetime of a single login attempt.
type DeviceCodeData struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code,omitempty"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in,omitempty"`
	Interval                int    `json:"interval,omitempty"`
}

type tokenReply struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

type pollState int

const (
	pollSuccess pollState = iota
	pollPending
	pollSlowDown
)

// pollResult is the tagged outcome of one token-endpoint poll. Pending and
// slow-down are control states, not errors; denial surfaces as an error from
// pollToken instead.
type pollResult struct {
	state  pollState
	tokens cache.TokenSet
}

// DeviceFlow runs the OAuth 2.0 Device Authorization Grant against the
// configured identity provider. A DeviceFlow instance serves one profile; a
// new login attempt always starts with a fresh device code.
type DeviceFlow struct {
	settings config.Settings
	http     *http.Client
	out      io.Writer
	log      *zap.SugaredLogger

	// overridable for tests
	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

func NewDeviceFlow(settings config.Settings, httpClient *http.Client, out io.Writer, log *zap.SugaredLogger) *DeviceFlow {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DeviceFlow{
		settings: settings,
		http:     httpClient,
		out:      out,
		log:      log,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// FetchAuthTokens obtains an access token (and possibly a refresh token) via
// the device flow. It prints a verification URL for the user and polls the
// token endpoint until the grant completes, the provider denies it, or the
// configured poll budget runs out. Cancellation of ctx is observed between
// polls and during interval sleeps, not only inside a network call.
func (f *DeviceFlow) FetchAuthTokens(ctx context.Context) (cache.TokenSet, error) {
	deviceCode, err := f.requestDeviceCode(ctx)
	if err != nil {
		return cache.TokenSet{}, err
	}

	interval := time.Duration(deviceCode.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}
	budget := f.settings.MaxPollTime()

	_, _ = fmt.Fprintf(f.out,
		"To complete login, please open the following link in a browser:\n\n  %s\n\nWaiting up to %.1f minutes for you to complete the process...\n",
		deviceCode.VerificationURIComplete, budget.Minutes())

	deadline := f.now().Add(budget)
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return cache.TokenSet{}, err
		}
		if !f.now().Before(deadline) {
			return cache.TokenSet{}, ErrLoginTimeout
		}
		attempt++
		result, err := f.pollToken(ctx, deviceCode.DeviceCode)
		if err != nil {
			return cache.TokenSet{}, err
		}
		switch result.state {
		case pollSuccess:
			f.log.Debugw("device flow completed", "attempts", attempt)
			return result.tokens, nil
		case pollPending:
			f.log.Debugw("authorization pending", "attempt", attempt, "retry_in", interval)
			if err := f.sleep(ctx, interval); err != nil {
				return cache.TokenSet{}, err
			}
		case pollSlowDown:
			// Client-side backoff requested by the provider; the base
			// interval itself stays unchanged.
			f.log.Debugw("provider requested slow down", "attempt", attempt, "retry_in", 2*interval)
			if err := f.sleep(ctx, 2*interval); err != nil {
				return cache.TokenSet{}, err
			}
		}
	}
}

func (f *DeviceFlow) requestDeviceCode(ctx context.Context) (*DeviceCodeData, error) {
	values := url.Values{}
	values.Set("client_id", f.settings.OIDCClientID)

	resp, err := f.postForm(ctx, f.settings.DeviceAuthURL(), values)
	if err != nil {
		return nil, fmt.Errorf("there was a problem retrieving a device verification code from the auth provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("device authorization failed: %s", strings.TrimSpace(string(body)))
	}
	var payload DeviceCodeData
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode device authorization response: %w", err)
	}
	return &payload, nil
}

func (f *DeviceFlow) pollToken(ctx context.Context, deviceCode string) (pollResult, error) {
	values := url.Values{}
	values.Set("grant_type", deviceCodeGrantType)
	values.Set("device_code", deviceCode)
	values.Set("client_id", f.settings.OIDCClientID)

	resp, err := f.postForm(ctx, f.settings.TokenURL(), values)
	if err != nil {
		return pollResult{}, fmt.Errorf("token exchange request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// The provider reports pending/slow-down as error codes on a non-2xx
	// status, so the body is decoded regardless of status.
	var payload tokenReply
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return pollResult{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	switch payload.Error {
	case "":
	case "authorization_pending":
		return pollResult{state: pollPending}, nil
	case "slow_down":
		return pollResult{state: pollSlowDown}, nil
	default:
		return pollResult{}, &DeviceDeniedError{Code: payload.Error, Description: payload.ErrorDesc}
	}
	if payload.AccessToken == "" {
		return pollResult{}, fmt.Errorf("token response missing access token (status %d)", resp.StatusCode)
	}
	return pollResult{
		state:  pollSuccess,
		tokens: cache.TokenSet{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken},
	}, nil
}

func (f *DeviceFlow) postForm(ctx context.Context, endpoint string, values url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.http.Do(req)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
