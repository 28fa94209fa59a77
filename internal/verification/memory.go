package verification

import (
	"context"
	"sync"
)

// MemoryStore keeps pending codes in process memory. State is lost on restart and
// is not shared between instances; use RedisStore for either.
type MemoryStore struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*Pending
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{opts: opts.withDefaults(), entries: make(map[string]*Pending)}
}

// Issue replaces any pending entry for identity with a fresh code.
func (s *MemoryStore) Issue(_ context.Context, identity string) (string, error) {
	code, err := s.opts.Generate()
	if err != nil {
		return "", err
	}
	key := NormalizeIdentity(identity)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &Pending{
		Code:      code,
		ExpiresAt: s.opts.Clock.Now().Add(s.opts.TTL),
	}
	return code, nil
}

// Check validates code for identity. Issue and Check for the same identity are
// serialised, so a concurrent re-issue can never be lost behind a check.
func (s *MemoryStore) Check(_ context.Context, identity, code string) error {
	key := NormalizeIdentity(identity)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[key]
	if !ok {
		return ErrNotFound
	}
	remove, err := p.evaluate(s.opts.Clock.Now(), code, s.opts.MaxAttempts)
	if remove {
		delete(s.entries, key)
	}
	return err
}

// Sweep drops entries that expired more than Retention ago and returns how many
// were removed.
func (s *MemoryStore) Sweep() int {
	now := s.opts.Clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, p := range s.entries {
		if p.reclaimable(now, s.opts.Retention) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Peek returns a copy of the pending entry for identity.
func (s *MemoryStore) Peek(identity string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[NormalizeIdentity(identity)]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}
