package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	auth "github.com/epik-app/go-auth"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultHTTPTimeout     = 5 * time.Second
	DefaultKeySetTTL       = time.Hour
	DefaultRefetchInterval = 10 * time.Second

	// provider-wide ceiling on forced refetches across all key ids
	defaultRefetchCapEvery = time.Second
	defaultRefetchCapBurst = 5
	maxTrackedKIDs         = 256
)

// EphemeralStore is a TTL key-value store. Missing keys are reported as
// (nil, false, nil).
type EphemeralStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// KeySet is a parsed JWKS document.
type KeySet struct {
	jwks *keyfunc.JWKS
	kids map[string]struct{}
}

// ParseKeySet parses a JWKS document.
func ParseKeySet(raw []byte) (*KeySet, error) {
	jwks, err := keyfunc.NewJSON(json.RawMessage(raw))
	if err != nil {
		return nil, err
	}

	kids := map[string]struct{}{}
	for _, kid := range jwks.KIDs() {
		kids[kid] = struct{}{}
	}
	return &KeySet{jwks: jwks, kids: kids}, nil
}

// Has reports whether the set holds a key with the given kid.
func (k *KeySet) Has(kid string) bool {
	if k == nil {
		return false
	}
	_, ok := k.kids[kid]
	return ok
}

// Len returns the number of keys.
func (k *KeySet) Len() int {
	if k == nil {
		return 0
	}
	return len(k.kids)
}

// Keyfunc resolves the verification key for a parsed token.
func (k *KeySet) Keyfunc(token *jwt.Token) (any, error) {
	return k.jwks.Keyfunc(token)
}

// KeySetFetcher returns a provider key set. force bypasses any cache.
type KeySetFetcher interface {
	KeySet(ctx context.Context, force bool) (*KeySet, error)
}

// KeyRefresher is implemented by key sets that throttle forced refetches per
// key id, so an unknown kid cannot spend the refetch another kid needs.
type KeyRefresher interface {
	Refresh(ctx context.Context, kid string) (*KeySet, error)
}

// RawKeySetFetcher downloads a JWKS document.
type RawKeySetFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPKeySetFetcher downloads a JWKS document over HTTP.
type HTTPKeySetFetcher struct {
	provider ProviderName
	url      string
	client   *http.Client
}

// NewHTTPKeySetFetcher creates a fetcher for url. A nil client gets a
// DefaultHTTPTimeout client.
func NewHTTPKeySetFetcher(provider ProviderName, url string, client *http.Client) *HTTPKeySetFetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPKeySetFetcher{provider: provider, url: url, client: client}
}

func (f *HTTPKeySetFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, auth.Internal(err, "failed to build key set request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, wrapProviderError(ErrProviderUnavailable, f.provider, "jwks", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, wrapProviderError(ErrProviderUnavailable, f.provider, "jwks", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, wrapProviderError(ErrProviderServerError, f.provider, "jwks", &ProviderError{
			Provider:  f.provider,
			Operation: "jwks",
			Status:    resp.StatusCode,
		})
	}
	return body, nil
}

// KeySetOption customizes a CachedKeySet.
type KeySetOption func(*CachedKeySet)

// WithKeySetTTL sets how long a downloaded set is cached.
func WithKeySetTTL(ttl time.Duration) KeySetOption {
	return func(c *CachedKeySet) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRefetchLimit sets the rate of forced refetches for a single kid.
func WithRefetchLimit(every time.Duration, burst int) KeySetOption {
	return func(c *CachedKeySet) {
		if every > 0 && burst > 0 {
			c.kidEvery = every
			c.kidBurst = burst
		}
	}
}

// WithRefetchCap bounds forced refetches across all kids of the provider.
func WithRefetchCap(every time.Duration, burst int) KeySetOption {
	return func(c *CachedKeySet) {
		if every > 0 && burst > 0 {
			c.ceiling = rate.NewLimiter(rate.Every(every), burst)
		}
	}
}

// WithFetchTimeout bounds a single download. It applies even when the
// caller that started the download goes away.
func WithFetchTimeout(d time.Duration) KeySetOption {
	return func(c *CachedKeySet) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithKeySetClock sets the clock used by the refetch limiters.
func WithKeySetClock(now func() time.Time) KeySetOption {
	return func(c *CachedKeySet) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKeySetLogger sets the logger.
func WithKeySetLogger(logger auth.Logger) KeySetOption {
	return func(c *CachedKeySet) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKeySetMetrics sets the metrics recorder.
func WithKeySetMetrics(m Metrics) KeySetOption {
	return func(c *CachedKeySet) {
		c.metrics = metricsOrNoop(m)
	}
}

// CachedKeySet caches a provider key set in an EphemeralStore. Forced
// refetches are rate limited per kid and per provider, and concurrent
// downloads are collapsed.
type CachedKeySet struct {
	provider     ProviderName
	fetcher      RawKeySetFetcher
	store        EphemeralStore
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	group        singleflight.Group
	logger       auth.Logger
	metrics      Metrics

	kidEvery time.Duration
	kidBurst int
	ceiling  *rate.Limiter

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewCachedKeySet creates the cache for provider.
func NewCachedKeySet(provider ProviderName, fetcher RawKeySetFetcher, store EphemeralStore, opts ...KeySetOption) *CachedKeySet {
	c := &CachedKeySet{
		provider:     provider,
		fetcher:      fetcher,
		store:        store,
		ttl:          DefaultKeySetTTL,
		fetchTimeout: DefaultHTTPTimeout,
		now:          time.Now,
		logger:       auth.DefaultLogger(),
		metrics:      noopMetrics{},
		kidEvery:     DefaultRefetchInterval,
		kidBurst:     1,
		ceiling:      rate.NewLimiter(rate.Every(defaultRefetchCapEvery), defaultRefetchCapBurst),
		limiters:     map[string]*rate.Limiter{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *CachedKeySet) key() string {
	return fmt.Sprintf("social:jwks:%s", c.provider)
}

// KeySet returns the cached set, downloading it on a miss. force is a
// Refresh without a kid.
func (c *CachedKeySet) KeySet(ctx context.Context, force bool) (*KeySet, error) {
	if force {
		return c.Refresh(ctx, "")
	}
	if set := c.cached(ctx); set != nil {
		return set, nil
	}
	return c.load(ctx)
}

// Refresh bypasses the cache on behalf of kid. When the refetch limiters
// deny it the cached set is returned instead.
func (c *CachedKeySet) Refresh(ctx context.Context, kid string) (*KeySet, error) {
	if !c.allowRefetch(kid) {
		c.logger.Debug("forced key set refetch throttled", "provider", string(c.provider), "kid", kid)
		if set := c.cached(ctx); set != nil {
			return set, nil
		}
	}
	return c.load(ctx)
}

func (c *CachedKeySet) allowRefetch(kid string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[kid]
	if !ok {
		if len(c.limiters) >= maxTrackedKIDs {
			c.pruneLocked(now)
		}
		if len(c.limiters) >= maxTrackedKIDs {
			return false
		}
		l = rate.NewLimiter(rate.Every(c.kidEvery), c.kidBurst)
		c.limiters[kid] = l
	}

	if l.TokensAt(now) < 1 {
		return false
	}
	if !c.ceiling.AllowN(now, 1) {
		return false
	}
	return l.AllowN(now, 1)
}

// pruneLocked forgets kids whose limiter has fully refilled.
func (c *CachedKeySet) pruneLocked(now time.Time) {
	for kid, l := range c.limiters {
		if l.TokensAt(now) >= float64(c.kidBurst) {
			delete(c.limiters, kid)
		}
	}
}

// load downloads through the singleflight group. The shared download is
// detached from the caller that started it and bounded by fetchTimeout.
func (c *CachedKeySet) load(ctx context.Context) (*KeySet, error) {
	ch := c.group.DoChan(c.key(), func() (any, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.download(dctx)
	})

	select {
	case <-ctx.Done():
		return nil, wrapProviderError(ErrProviderUnavailable, c.provider, "jwks", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*KeySet), nil
	}
}

func (c *CachedKeySet) cached(ctx context.Context) *KeySet {
	if c.store == nil {
		return nil
	}

	raw, ok, err := c.store.Get(ctx, c.key())
	if err != nil {
		c.logger.Warn("key set cache read failed", "provider", string(c.provider), "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	set, err := ParseKeySet(raw)
	if err != nil {
		c.logger.Warn("discarding unreadable cached key set", "provider", string(c.provider), "error", err)
		_ = c.store.Del(ctx, c.key())
		return nil
	}
	return set
}

func (c *CachedKeySet) download(ctx context.Context) (*KeySet, error) {
	raw, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.metrics.RecordKeySetFetch(string(c.provider), ResultFailure)
		return nil, err
	}

	set, err := ParseKeySet(raw)
	if err != nil {
		c.metrics.RecordKeySetFetch(string(c.provider), ResultFailure)
		return nil, wrapProviderError(ErrProviderServerError, c.provider, "jwks", err)
	}
	c.metrics.RecordKeySetFetch(string(c.provider), ResultSuccess)

	if c.store != nil {
		if err := c.store.Set(ctx, c.key(), raw, c.ttl); err != nil {
			c.logger.Warn("key set cache write failed", "provider", string(c.provider), "error", err)
		}
	}

	c.logger.Debug("downloaded key set", "provider", string(c.provider), "keys", set.Len())
	return set, nil
}
