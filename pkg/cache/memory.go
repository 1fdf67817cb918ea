package cache

import "sync"

// MemoryStore is an in-process Store, useful in tests and for commands that
// must not touch the user's token cache.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]TokenSet
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: map[string]TokenSet{}}
}

func (s *MemoryStore) Load(profile string) (TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens, ok := s.tokens[profile]
	if !ok || tokens.AccessToken == "" {
		return TokenSet{}, ErrNotLoggedIn
	}
	return tokens, nil
}

func (s *MemoryStore) Save(profile string, tokens TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[profile] = tokens
	return nil
}

func (s *MemoryStore) Clear(profile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, profile)
	return nil
}
