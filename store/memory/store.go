package memorystore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-integrations/core"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Store is a process-local key-value store with per-entry TTLs. Expired
// entries are dropped lazily on access; Sweep reclaims the rest.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: map[string]entry{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewWithClock injects the time source. Test seam.
func NewWithClock(now func() time.Time) *Store {
	store := New()
	if now != nil {
		store.now = now
	}
	return store
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return fmt.Errorf("memorystore: store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("memorystore: key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("memorystore: ttl must be positive for key %q", key)
	}

	s.mu.Lock()
	s.entries[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("memorystore: store is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.entries[strings.TrimSpace(key)]
	if !ok {
		return nil, false, nil
	}
	if s.now().After(item.expiresAt) {
		delete(s.entries, strings.TrimSpace(key))
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

// Consume removes the entry under the same lock that reads it, so only one
// caller can ever observe a given value.
func (s *Store) Consume(_ context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, fmt.Errorf("memorystore: store is not configured")
	}

	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.entries, key)
	if s.now().After(item.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("memorystore: store is not configured")
	}
	s.mu.Lock()
	delete(s.entries, strings.TrimSpace(key))
	s.mu.Unlock()
	return nil
}

// Sweep drops every expired entry and reports how many were removed.
func (s *Store) Sweep() int {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, item := range s.entries {
		if now.After(item.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports live entries, counting not-yet-swept expired ones.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ core.KeyValueStore = (*Store)(nil)
