package cache

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const DefaultKeyringService = "vantage-cli"

// KeyringStore keeps tokens in the OS keychain instead of on disk. It honors
// the same contract as FileStore: missing access token maps to ErrNotLoggedIn
// and Clear is idempotent.
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) accessKey(profile string) string  { return profile + "/access" }
func (s *KeyringStore) refreshKey(profile string) string { return profile + "/refresh" }

func (s *KeyringStore) Load(profile string) (TokenSet, error) {
	access, err := keyring.Get(s.service, s.accessKey(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return TokenSet{}, ErrNotLoggedIn
		}
		return TokenSet{}, fmt.Errorf("failed to read access token from keyring: %w", err)
	}
	tokens := TokenSet{AccessToken: access}

	refresh, err := keyring.Get(s.service, s.refreshKey(profile))
	if err == nil {
		tokens.RefreshToken = refresh
	} else if !errors.Is(err, keyring.ErrNotFound) {
		return TokenSet{}, fmt.Errorf("failed to read refresh token from keyring: %w", err)
	}
	return tokens, nil
}

func (s *KeyringStore) Save(profile string, tokens TokenSet) error {
	if err := keyring.Set(s.service, s.accessKey(profile), tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token in keyring: %w", err)
	}
	if tokens.RefreshToken != "" {
		if err := keyring.Set(s.service, s.refreshKey(profile), tokens.RefreshToken); err != nil {
			return fmt.Errorf("failed to store refresh token in keyring: %w", err)
		}
		return nil
	}
	if err := keyring.Delete(s.service, s.refreshKey(profile)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove stale refresh token from keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear(profile string) error {
	for _, key := range []string{s.accessKey(profile), s.refreshKey(profile)} {
		if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to remove %s from keyring: %w", key, err)
		}
	}
	return nil
}
