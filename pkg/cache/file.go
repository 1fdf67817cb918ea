package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	accessTokenFile  = "access.token"
	refreshTokenFile = "refresh.token"
)

// FileStore keeps tokens under <dir>/<profile>/{access.token,refresh.token}
// as plain text files with owner-only permissions.
//
// The cache is shared by concurrent CLI invocations without locking; each file
// is replaced atomically via rename, so the resolution for racing refreshes is
// last-write-wins and a reader never observes a torn token.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) profileDir(profile string) string {
	return filepath.Join(s.dir, profile)
}

func (s *FileStore) tokenPaths(profile string) (string, string) {
	dir := s.profileDir(profile)
	return filepath.Join(dir, accessTokenFile), filepath.Join(dir, refreshTokenFile)
}

func (s *FileStore) Load(profile string) (TokenSet, error) {
	accessPath, refreshPath := s.tokenPaths(profile)

	access, err := os.ReadFile(accessPath)
	if err != nil {
		if os.IsNotExist(err) {
			return TokenSet{}, ErrNotLoggedIn
		}
		return TokenSet{}, fmt.Errorf("failed to read access token: %w", err)
	}
	tokens := TokenSet{AccessToken: strings.TrimSpace(string(access))}

	// A missing refresh token is not an error; it only means the session
	// cannot be silently refreshed.
	refresh, err := os.ReadFile(refreshPath)
	if err == nil {
		tokens.RefreshToken = strings.TrimSpace(string(refresh))
	} else if !os.IsNotExist(err) {
		return TokenSet{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	return tokens, nil
}

func (s *FileStore) Save(profile string, tokens TokenSet) error {
	dir := s.profileDir(profile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token dir: %w", err)
	}
	accessPath, refreshPath := s.tokenPaths(profile)

	if err := writeFileAtomic(accessPath, tokens.AccessToken); err != nil {
		return fmt.Errorf("failed to write access token: %w", err)
	}
	if tokens.RefreshToken != "" {
		if err := writeFileAtomic(refreshPath, tokens.RefreshToken); err != nil {
			return fmt.Errorf("failed to write refresh token: %w", err)
		}
		return nil
	}
	// Drop any stale refresh token left over from a previous session.
	if err := os.Remove(refreshPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale refresh token: %w", err)
	}
	return nil
}

func (s *FileStore) Clear(profile string) error {
	accessPath, refreshPath := s.tokenPaths(profile)
	for _, path := range []string{accessPath, refreshPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func writeFileAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
