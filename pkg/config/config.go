package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	// DefaultProfile is the profile used when none is configured or selected.
	DefaultProfile = "default"

	oidcRealmPath  = "/realms/vantage"
	oidcTokenPath  = oidcRealmPath + "/protocol/openid-connect/token"
	oidcDevicePath = oidcRealmPath + "/protocol/openid-connect/auth/device"
	graphqlPath    = "/cluster/graphql"
)

// Settings holds the per-profile connection settings for the Vantage platform.
type Settings struct {
	APIBaseURL      string   `yaml:"api-base-url,omitempty"`
	OIDCBaseURL     string   `yaml:"oidc-base-url,omitempty"`
	OIDCClientID    string   `yaml:"oidc-client-id,omitempty"`
	OIDCMaxPollTime int      `yaml:"oidc-max-poll-time,omitempty"`
	TunnelAPIURL    string   `yaml:"tunnel-api-url,omitempty"`
	SupportedClouds []string `yaml:"supported-clouds,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		APIBaseURL:      "https://apis.vantagecompute.ai",
		OIDCBaseURL:     "https://auth.vantagecompute.ai",
		OIDCClientID:    "default",
		OIDCMaxPollTime: 300,
		TunnelAPIURL:    "https://tunnel.vantagecompute.ai",
		SupportedClouds: []string{"maas", "localhost", "aws", "gcp", "azure", "on-premises", "k8s"},
	}
}

// withDefaults fills zero-valued fields so a sparse profile entry behaves like
// the full default settings.
func (s Settings) withDefaults() Settings {
	defaults := DefaultSettings()
	if s.APIBaseURL == "" {
		s.APIBaseURL = defaults.APIBaseURL
	}
	if s.OIDCBaseURL == "" {
		s.OIDCBaseURL = defaults.OIDCBaseURL
	}
	if s.OIDCClientID == "" {
		s.OIDCClientID = defaults.OIDCClientID
	}
	if s.OIDCMaxPollTime <= 0 {
		s.OIDCMaxPollTime = defaults.OIDCMaxPollTime
	}
	if s.TunnelAPIURL == "" {
		s.TunnelAPIURL = defaults.TunnelAPIURL
	}
	if len(s.SupportedClouds) == 0 {
		s.SupportedClouds = defaults.SupportedClouds
	}
	return s
}

// TokenURL is the OIDC token endpoint used for both the device-code exchange
// and refresh-token grants.
func (s Settings) TokenURL() string {
	return strings.TrimRight(s.OIDCBaseURL, "/") + oidcTokenPath
}

// DeviceAuthURL is the OIDC device authorization endpoint.
func (s Settings) DeviceAuthURL() string {
	return strings.TrimRight(s.OIDCBaseURL, "/") + oidcDevicePath
}

// GraphQLURL is the platform GraphQL endpoint.
func (s Settings) GraphQLURL() string {
	return strings.TrimRight(s.APIBaseURL, "/") + graphqlPath
}

// MaxPollTime is the wall-clock budget for the device-code poll loop.
func (s Settings) MaxPollTime() time.Duration {
	return time.Duration(s.OIDCMaxPollTime) * time.Second
}

type Config struct {
	Version        string              `yaml:"version"`
	CurrentProfile string              `yaml:"current-profile,omitempty"`
	Profiles       map[string]Settings `yaml:"profiles,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version:        VersionV1,
		CurrentProfile: DefaultProfile,
		Profiles:       map[string]Settings{DefaultProfile: DefaultSettings()},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Settings{}
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

// ProfileSettings returns the settings for the named profile with defaults
// applied. The second return reports whether the profile is defined in the
// config; an undefined profile still yields usable default settings.
func (c *Config) ProfileSettings(name string) (Settings, bool) {
	s, ok := c.Profiles[name]
	return s.withDefaults(), ok
}

func (c *Config) ProfileNames() []string {
	names := maps.Keys(c.Profiles)
	sort.Strings(names)
	return names
}

func (c *Config) CurrentProfileOrDefault() string {
	if c.CurrentProfile != "" {
		return c.CurrentProfile
	}
	return DefaultProfile
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	for name, s := range c.Profiles {
		if strings.TrimSpace(name) == "" {
			return errors.New("profile name cannot be empty")
		}
		resolved := s.withDefaults()
		if !strings.HasPrefix(resolved.OIDCBaseURL, "http") {
			return fmt.Errorf("profile %s oidc-base-url is not a valid URL", name)
		}
		if !strings.HasPrefix(resolved.APIBaseURL, "http") {
			return fmt.Errorf("profile %s api-base-url is not a valid URL", name)
		}
	}
	return nil
}
