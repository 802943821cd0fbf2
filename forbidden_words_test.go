package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/epik-app/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWordStore struct {
	mu    sync.Mutex
	words []string
	err   error
	calls atomic.Int32
}

func (s *countingWordStore) ListWords(context.Context) ([]string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]string(nil), s.words...), nil
}

func (s *countingWordStore) set(words ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.words = words
}

func TestForbiddenWords_Contains(t *testing.T) {
	ctx := context.Background()
	store := &countingWordStore{words: []string{"  Admin ", "운영자", ""}}
	words := auth.NewForbiddenWords(store, time.Minute)

	tests := []struct {
		text string
		want bool
	}{
		{"superADMIN", true},
		{"진짜운영자", true},
		{"friendly", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := words.Contains(ctx, tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.text)
	}

	list, err := words.Words(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "운영자"}, list)
	assert.EqualValues(t, 1, store.calls.Load(), "loaded once")
}

func TestForbiddenWords_TTLAndInvalidate(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := &countingWordStore{words: []string{"foo"}}
	words := auth.NewForbiddenWords(store, time.Minute).WithClock(clock.Now)

	ok, err := words.Contains(ctx, "food")
	require.NoError(t, err)
	assert.True(t, ok)

	store.set("bar")

	ok, _ = words.Contains(ctx, "barn")
	assert.False(t, ok, "cached list is still served")

	words.Invalidate()
	ok, _ = words.Contains(ctx, "barn")
	assert.True(t, ok)

	store.set("baz")
	clock.Advance(time.Minute)
	ok, _ = words.Contains(ctx, "bazaar")
	assert.True(t, ok, "reloaded after ttl")
	assert.EqualValues(t, 3, store.calls.Load())
}

func TestForbiddenWords_StoreError(t *testing.T) {
	store := &countingWordStore{err: errors.New("db down")}
	words := auth.NewForbiddenWords(store, 0)

	_, err := words.Contains(context.Background(), "anything")
	assert.Error(t, err)
}

func TestForbiddenWords_Repository(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, auth.AddForbiddenWords(ctx, f.repo.DB(), "spam", "spam", "scam"))

	list, err := f.repo.ForbiddenWords().ListWords(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"spam", "scam"}, list)
}
