// Package memorystore holds process local ephemeral state such as cached
// provider key sets.
package memorystore

import (
	"context"
	"sync"
	"time"
)

type kvItem struct {
	value   []byte
	expires time.Time
}

// KV is an in-memory key-value store with TTL support. Entries are not
// shared between processes.
type KV struct {
	mu    sync.RWMutex
	items map[string]kvItem
	now   func() time.Time
}

func NewKV() *KV {
	return &KV{items: make(map[string]kvItem), now: time.Now}
}

// WithClock injects the time source.
func (k *KV) WithClock(now func() time.Time) *KV {
	if now != nil {
		k.now = now
	}
	return k
}

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	k.mu.RLock()
	it, ok := k.items[key]
	k.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !it.expires.IsZero() && !k.now().Before(it.expires) {
		k.mu.Lock()
		if cur, ok := k.items[key]; ok && cur.expires.Equal(it.expires) {
			delete(k.items, key)
		}
		k.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var exp time.Time
	if ttl > 0 {
		exp = k.now().Add(ttl)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.items[key] = kvItem{value: append([]byte(nil), value...), expires: exp}
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.items, key)
	return nil
}

// Len returns the number of entries, expired ones included.
func (k *KV) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.items)
}
