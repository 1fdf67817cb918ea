package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vantage-compute/vantage-cli/pkg/auth"
)

// Client executes GraphQL operations against a single endpoint, attaching
// the bearer token of its persona and recovering from authentication-class
// failures with at most one refresh-and-retry per call.
type Client struct {
	url       string
	http      *http.Client
	userAgent string
	headers   map[string]string
	persona   *auth.Persona
	profile   string
	manager   *auth.Manager
	log       *zap.SugaredLogger
	metrics   []QueryMetrics
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "vantage-cli",
		headers:   map[string]string{},
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.url == "" {
		return nil, errors.New("graphql endpoint url is required")
	}
	return c, nil
}

func WithURL(url string) Option {
	return func(c *Client) error {
		if url == "" {
			return errors.New("graphql endpoint url is required")
		}
		c.url = url
		return nil
	}
}

func WithPersona(persona *auth.Persona) Option {
	return func(c *Client) error {
		c.persona = persona
		return nil
	}
}

// WithManager enables the refresh-and-retry path for authentication-class
// failures on the given profile.
func WithManager(profile string, manager *auth.Manager) Option {
	return func(c *Client) error {
		c.profile = profile
		c.manager = manager
		return nil
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return errors.New("http client is nil")
		}
		c.http = httpClient
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.http.Timeout = timeout
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

func WithHeader(key, value string) Option {
	return func(c *Client) error {
		c.headers[key] = value
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// Persona returns the persona the client currently attaches to requests. It
// may differ from the one the client was built with after a refresh.
func (c *Client) Persona() *auth.Persona {
	return c.persona
}

// authFailure is the internal classification of a 401/403 transport response.
// It is converted to AuthenticationError once the single recovery attempt is
// spent (or unavailable).
type authFailure struct {
	status  int
	message string
}

func (e *authFailure) Error() string {
	return fmt.Sprintf("authentication rejected (%d): %s", e.status, e.message)
}

// Execute runs one GraphQL operation. With requireAuth set, the held persona
// is validated before any network call. An authentication-class transport
// failure triggers one token refresh followed by one retry carrying the new
// token; every other failure is surfaced as-is. Exactly one QueryMetrics
// entry is recorded per call.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, requireAuth bool) (map[string]any, error) {
	if requireAuth {
		if err := c.validateAuth(); err != nil {
			return nil, err
		}
	}
	name := queryName(query)
	correlationID := uuid.NewString()
	start := time.Now()

	for attempt := 0; ; attempt++ {
		data, err := c.execute(ctx, query, variables)
		if err == nil {
			c.record(QueryMetrics{QueryName: name, ExecutionTimeMS: msSince(start), Success: true, RetryCount: attempt})
			c.log.Debugw("graphql query succeeded", "query", name, "correlation_id", correlationID, "retries", attempt)
			return data, nil
		}

		var denied *authFailure
		if errors.As(err, &denied) {
			if attempt == 0 && c.manager != nil && c.persona != nil {
				c.log.Debugw("authentication failure, attempting token refresh",
					"query", name, "correlation_id", correlationID, "status", denied.status)
				refreshed, refreshErr := c.manager.Refresh(ctx, c.profile, c.persona.TokenSet)
				if refreshErr == nil {
					// The refresh is persisted before the retry goes out, so
					// the retried request always observes the new token.
					persona := *c.persona
					persona.TokenSet = refreshed
					c.persona = &persona
					continue
				}
				c.log.Debugw("token refresh failed", "query", name, "correlation_id", correlationID, "error", refreshErr)
			}
			c.record(QueryMetrics{QueryName: name, ExecutionTimeMS: msSince(start), Success: false, ErrorType: "AuthenticationError", RetryCount: attempt})
			return nil, &AuthenticationError{Message: fmt.Sprintf("authentication failed during %s: %s", name, denied.message)}
		}

		c.record(QueryMetrics{QueryName: name, ExecutionTimeMS: msSince(start), Success: false, ErrorType: "GraphQLError", RetryCount: attempt})
		return nil, err
	}
}

func (c *Client) validateAuth() error {
	if c.persona == nil {
		return &AuthenticationError{Message: "no authentication persona provided"}
	}
	if c.persona.TokenSet.AccessToken == "" {
		return &AuthenticationError{Message: "no access token available"}
	}
	if auth.IsExpired(c.persona.TokenSet.AccessToken, 0) {
		return &AuthenticationError{Message: "access token has expired"}
	}
	return nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   map[string]any     `json:"data"`
	Errors []gqlResponseError `json:"errors,omitempty"`
}

type gqlResponseError struct {
	Message string `json:"message"`
}

// execute performs a single HTTP round trip and classifies its outcome.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, &GraphQLError{Message: fmt.Sprintf("failed to encode request: %v", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, &GraphQLError{Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.persona != nil && c.persona.TokenSet.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.persona.TokenSet.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &GraphQLError{Message: fmt.Sprintf("request timeout: %v", err)}
		}
		return nil, &GraphQLError{Message: fmt.Sprintf("connection failed: %v", err)}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return nil, &authFailure{status: resp.StatusCode, message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &GraphQLError{Message: fmt.Sprintf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}

	var decoded gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &GraphQLError{Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, respErr := range decoded.Errors {
			messages = append(messages, respErr.Message)
		}
		return nil, &GraphQLError{Message: "graphql errors", Errors: messages}
	}
	if decoded.Data == nil {
		return map[string]any{}, nil
	}
	return decoded.Data, nil
}

const introspectionProbe = `query IntrospectionQuery { __schema { queryType { name } } }`

// HealthCheck probes the endpoint with an unauthenticated introspection
// query and reports whether it answered sensibly.
func (c *Client) HealthCheck(ctx context.Context) bool {
	data, err := c.Execute(ctx, introspectionProbe, nil, false)
	if err != nil {
		c.log.Debugw("health check failed", "error", err)
		return false
	}
	_, ok := data["__schema"]
	return ok
}

// queryName pulls the operation name out of a query with a deliberately loose
// string scan; it feeds logging and metrics, not validation.
func queryName(query string) string {
	fields := strings.Fields(query)
	for i, field := range fields {
		if field != "query" && field != "mutation" {
			continue
		}
		if i+1 >= len(fields) {
			break
		}
		name := fields[i+1]
		if idx := strings.IndexAny(name, "({"); idx >= 0 {
			name = name[:idx]
		}
		if name != "" {
			return name
		}
		break
	}
	return "UnnamedOperation"
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
