package social_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	keyA    *rsa.PrivateKey
	keyB    *rsa.PrivateKey
)

func rsaKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		if keyA, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
		if keyB, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
			panic(err)
		}
	})
	return keyA, keyB
}

type signingKey struct {
	kid  string
	priv *rsa.PrivateKey
}

// jwksDocument renders the public halves of keys as a JWKS document.
func jwksDocument(t *testing.T, keys ...signingKey) []byte {
	t.Helper()
	set := jwk.NewSet()
	for _, k := range keys {
		key, err := jwk.FromRaw(&k.priv.PublicKey)
		require.NoError(t, err)
		require.NoError(t, key.Set(jwk.KeyIDKey, k.kid))
		require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
		require.NoError(t, key.Set(jwk.KeyUsageKey, "sig"))
		require.NoError(t, set.AddKey(key))
	}
	raw, err := json.Marshal(set)
	require.NoError(t, err)
	return raw
}

func signIDToken(t *testing.T, key signingKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if key.kid != "" {
		token.Header["kid"] = key.kid
	}
	raw, err := token.SignedString(key.priv)
	require.NoError(t, err)
	return raw
}

func idClaims(iss, aud, sub string, exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   iss,
		"aud":   aud,
		"sub":   sub,
		"email": sub + "@example.com",
		"iat":   exp.Add(-time.Hour).Unix(),
		"exp":   exp.Unix(),
	}
}

// rawFetcher serves a swappable JWKS document and counts downloads.
type rawFetcher struct {
	mu    sync.Mutex
	doc   []byte
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *rawFetcher) set(doc []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = doc
}

func (f *rawFetcher) Fetch(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte(nil), f.doc...), nil
}

type recordedMetric struct {
	kind, provider, result string
}

type metricsRecorder struct {
	mu   sync.Mutex
	seen []recordedMetric
}

func (m *metricsRecorder) RecordVerification(provider, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, recordedMetric{"verify", provider, result})
}

func (m *metricsRecorder) RecordKeySetFetch(provider, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, recordedMetric{"jwks", provider, result})
}

func (m *metricsRecorder) all() []recordedMetric {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedMetric(nil), m.seen...)
}
