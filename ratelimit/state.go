package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-fediauth/core"
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// State is the last known quota of one host/endpoint pair.
type State struct {
	Key            core.RateLimitKey
	Limit          int
	Remaining      int
	ResetAt        *time.Time
	RetryAfter     *time.Duration
	ThrottledUntil *time.Time
	LastStatus     int
	Attempts       int
	UpdatedAt      time.Time
	Metadata       map[string]any
}

type StateStore interface {
	Get(ctx context.Context, key core.RateLimitKey) (State, error)
	Upsert(ctx context.Context, state State) error
}

// NormalizeKey lowercases both parts and strips surrounding slashes from the
// bucket so "/Notes/Create/" and "notes/create" share state.
func NormalizeKey(key core.RateLimitKey) core.RateLimitKey {
	return core.RateLimitKey{
		Host:      strings.ToLower(strings.TrimSpace(key.Host)),
		BucketKey: strings.Trim(strings.ToLower(strings.TrimSpace(key.BucketKey)), "/"),
	}
}

// MemoryStateStore keeps state for a single process.
type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[core.RateLimitKey]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[core.RateLimitKey]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key core.RateLimitKey) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.RLock()
	state, ok := s.items[NormalizeKey(key)]
	s.mu.RUnlock()
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = NormalizeKey(state.Key)
	s.mu.Lock()
	s.items[state.Key] = state.Clone()
	s.mu.Unlock()
	return nil
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Metadata = make(map[string]any, len(s.Metadata))
	for key, value := range s.Metadata {
		out.Metadata[key] = value
	}
	if s.ResetAt != nil {
		value := *s.ResetAt
		out.ResetAt = &value
	}
	if s.ThrottledUntil != nil {
		value := *s.ThrottledUntil
		out.ThrottledUntil = &value
	}
	if s.RetryAfter != nil {
		value := *s.RetryAfter
		out.RetryAfter = &value
	}
	return out
}
