package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultForbiddenWordsTTL is how long a loaded word list is trusted.
const DefaultForbiddenWordsTTL = 10 * time.Minute

// ForbiddenWords is a read mostly cache of the forbidden word list. It loads
// lazily, reloads after ttl and can be invalidated explicitly.
type ForbiddenWords struct {
	store ForbiddenWordStore
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	words    []string
	loadedAt time.Time
	loaded   bool

	group singleflight.Group
}

// NewForbiddenWords creates the cache over store.
func NewForbiddenWords(store ForbiddenWordStore, ttl time.Duration) *ForbiddenWords {
	if ttl <= 0 {
		ttl = DefaultForbiddenWordsTTL
	}
	return &ForbiddenWords{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock injects the time source.
func (f *ForbiddenWords) WithClock(now func() time.Time) *ForbiddenWords {
	if now != nil {
		f.now = now
	}
	return f
}

// Invalidate forces the next lookup to reload from the store.
func (f *ForbiddenWords) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
}

// Words returns a copy of the current list.
func (f *ForbiddenWords) Words(ctx context.Context) ([]string, error) {
	words, err := f.current(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), words...), nil
}

// Contains reports whether text contains any forbidden word, ignoring case.
func (f *ForbiddenWords) Contains(ctx context.Context, text string) (bool, error) {
	words, err := f.current(ctx)
	if err != nil {
		return false, err
	}

	lowered := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lowered, w) {
			return true, nil
		}
	}
	return false, nil
}

func (f *ForbiddenWords) current(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	if f.loaded && f.now().Sub(f.loadedAt) < f.ttl {
		words := f.words
		f.mu.RUnlock()
		return words, nil
	}
	f.mu.RUnlock()

	v, err, _ := f.group.Do("load", func() (any, error) {
		words, err := f.store.ListWords(ctx)
		if err != nil {
			return nil, err
		}

		normalized := make([]string, 0, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				normalized = append(normalized, w)
			}
		}

		f.mu.Lock()
		f.words = normalized
		f.loadedAt = f.now()
		f.loaded = true
		f.mu.Unlock()

		return normalized, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}
