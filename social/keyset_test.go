package social_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/social"
	memorystore "github.com/epik-app/go-auth/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeySet(t *testing.T) {
	a, b := rsaKeys(t)
	set, err := social.ParseKeySet(jwksDocument(t, signingKey{"k1", a}, signingKey{"k2", b}))
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has("k1"))
	assert.True(t, set.Has("k2"))
	assert.False(t, set.Has("k3"))

	_, err = social.ParseKeySet([]byte("not json"))
	assert.Error(t, err)

	var nilSet *social.KeySet
	assert.False(t, nilSet.Has("k1"))
	assert.Zero(t, nilSet.Len())
}

func TestCachedKeySet_CachesDownloads(t *testing.T) {
	a, _ := rsaKeys(t)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a})}
	metrics := &metricsRecorder{}
	store := memorystore.NewKV()

	keys := social.NewCachedKeySet(social.ProviderKakao, fetcher, store, social.WithKeySetMetrics(metrics))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		set, err := keys.KeySet(ctx, false)
		require.NoError(t, err)
		assert.True(t, set.Has("k1"))
	}
	assert.EqualValues(t, 1, fetcher.calls.Load())
	assert.Equal(t, []recordedMetric{{"jwks", "KAKAO", social.ResultSuccess}}, metrics.all())

	_, ok, err := store.Get(ctx, "social:jwks:KAKAO")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachedKeySet_ExpiresWithTTL(t *testing.T) {
	a, _ := rsaKeys(t)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a})}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := memorystore.NewKV().WithClock(func() time.Time { return now })

	keys := social.NewCachedKeySet(social.ProviderGoogle, fetcher, store, social.WithKeySetTTL(time.Minute))
	ctx := context.Background()

	_, err := keys.KeySet(ctx, false)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = keys.KeySet(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fetcher.calls.Load())

	now = now.Add(2 * time.Second)
	_, err = keys.KeySet(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestCachedKeySet_ForcedRefetchIsRateLimited(t *testing.T) {
	a, b := rsaKeys(t)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a})}
	keys := social.NewCachedKeySet(social.ProviderKakao, fetcher, memorystore.NewKV(),
		social.WithRefetchLimit(time.Hour, 1))
	ctx := context.Background()

	_, err := keys.KeySet(ctx, false)
	require.NoError(t, err)

	fetcher.set(jwksDocument(t, signingKey{"k2", b}))

	set, err := keys.KeySet(ctx, true)
	require.NoError(t, err)
	assert.True(t, set.Has("k2"))
	assert.EqualValues(t, 2, fetcher.calls.Load())

	// the limiter is spent, so the cached set is served
	set, err = keys.KeySet(ctx, true)
	require.NoError(t, err)
	assert.True(t, set.Has("k2"))
	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestCachedKeySet_RefetchIsThrottledPerKid(t *testing.T) {
	a, b := rsaKeys(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a})}
	keys := social.NewCachedKeySet(social.ProviderKakao, fetcher, memorystore.NewKV(),
		social.WithKeySetClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := keys.KeySet(ctx, false)
	require.NoError(t, err)

	set, err := keys.Refresh(ctx, "bogus")
	require.NoError(t, err)
	assert.False(t, set.Has("bogus"))
	assert.EqualValues(t, 2, fetcher.calls.Load())

	_, err = keys.Refresh(ctx, "bogus")
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetcher.calls.Load(), "same kid inside the interval is served from cache")

	fetcher.set(jwksDocument(t, signingKey{"k2", b}))

	set, err = keys.Refresh(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, set.Has("k2"))
	assert.EqualValues(t, 3, fetcher.calls.Load())

	now = now.Add(social.DefaultRefetchInterval)
	_, err = keys.Refresh(ctx, "bogus")
	require.NoError(t, err)
	assert.EqualValues(t, 4, fetcher.calls.Load())
}

func TestCachedKeySet_RefetchCap(t *testing.T) {
	a, _ := rsaKeys(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a})}
	keys := social.NewCachedKeySet(social.ProviderKakao, fetcher, memorystore.NewKV(),
		social.WithKeySetClock(func() time.Time { return now }),
		social.WithRefetchCap(time.Hour, 2))
	ctx := context.Background()

	_, err := keys.KeySet(ctx, false)
	require.NoError(t, err)

	for _, kid := range []string{"x1", "x2", "x3", "x4"} {
		_, err := keys.Refresh(ctx, kid)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, fetcher.calls.Load())
}

func TestCachedKeySet_SharedDownloadOutlivesCanceledCaller(t *testing.T) {
	a, _ := rsaKeys(t)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a}), delay: 200 * time.Millisecond}
	keys := social.NewCachedKeySet(social.ProviderGoogle, fetcher, memorystore.NewKV())

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := keys.KeySet(first, false)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	type result struct {
		set *social.KeySet
		err error
	}
	second := make(chan result, 1)
	go func() {
		set, err := keys.KeySet(context.Background(), false)
		second <- result{set, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-firstErr
	require.Error(t, err)
	assert.Equal(t, social.TextCodeProviderDown, auth.TextCodeOf(err))

	res := <-second
	require.NoError(t, res.err)
	assert.True(t, res.set.Has("k1"))
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestCachedKeySet_FetchTimeout(t *testing.T) {
	a, _ := rsaKeys(t)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a}), delay: time.Second}
	keys := social.NewCachedKeySet(social.ProviderGoogle, fetcher, nil,
		social.WithFetchTimeout(20*time.Millisecond))

	_, err := keys.KeySet(context.Background(), false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachedKeySet_CollapsesConcurrentMisses(t *testing.T) {
	a, _ := rsaKeys(t)
	fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a}), delay: 50 * time.Millisecond}
	keys := social.NewCachedKeySet(social.ProviderKakao, fetcher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := keys.KeySet(context.Background(), false)
			assert.NoError(t, err)
			assert.True(t, set.Has("k1"))
		}()
	}
	wg.Wait()

	assert.Less(t, fetcher.calls.Load(), int32(8))
}

func TestCachedKeySet_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch error is returned", func(t *testing.T) {
		metrics := &metricsRecorder{}
		fetcher := &rawFetcher{err: errors.New("boom")}
		keys := social.NewCachedKeySet(social.ProviderGoogle, fetcher, memorystore.NewKV(), social.WithKeySetMetrics(metrics))

		_, err := keys.KeySet(ctx, false)
		assert.EqualError(t, err, "boom")
		assert.Equal(t, []recordedMetric{{"jwks", "GOOGLE", social.ResultFailure}}, metrics.all())
	})

	t.Run("unparsable document is a server error", func(t *testing.T) {
		fetcher := &rawFetcher{doc: []byte(`{"keys": "nope"}`)}
		keys := social.NewCachedKeySet(social.ProviderGoogle, fetcher, memorystore.NewKV())

		_, err := keys.KeySet(ctx, false)
		require.Error(t, err)
		assert.Equal(t, social.TextCodeProviderServer, auth.TextCodeOf(err))
	})

	t.Run("corrupt cache entry is discarded", func(t *testing.T) {
		a, _ := rsaKeys(t)
		store := memorystore.NewKV()
		require.NoError(t, store.Set(ctx, "social:jwks:NAVER", []byte("garbage"), time.Hour))

		fetcher := &rawFetcher{doc: jwksDocument(t, signingKey{"k1", a})}
		keys := social.NewCachedKeySet(social.ProviderNaver, fetcher, store)

		set, err := keys.KeySet(ctx, false)
		require.NoError(t, err)
		assert.True(t, set.Has("k1"))
		assert.EqualValues(t, 1, fetcher.calls.Load())
	})
}

func TestHTTPKeySetFetcher(t *testing.T) {
	a, _ := rsaKeys(t)
	doc := jwksDocument(t, signingKey{"k1", a})
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(doc)
		}))
		defer srv.Close()

		raw, err := social.NewHTTPKeySetFetcher(social.ProviderKakao, srv.URL, nil).Fetch(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, string(doc), string(raw))
	})

	t.Run("non 2xx is a server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := social.NewHTTPKeySetFetcher(social.ProviderKakao, srv.URL, nil).Fetch(ctx)
		require.Error(t, err)
		assert.Equal(t, social.TextCodeProviderServer, auth.TextCodeOf(err))
		assert.Equal(t, http.StatusBadGateway, auth.HTTPStatus(err))
	})

	t.Run("transport error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := social.NewHTTPKeySetFetcher(social.ProviderKakao, url, nil).Fetch(ctx)
		require.Error(t, err)
		assert.Equal(t, social.TextCodeProviderDown, auth.TextCodeOf(err))
		assert.Equal(t, http.StatusServiceUnavailable, auth.HTTPStatus(err))
	})
}
