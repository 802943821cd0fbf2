package social_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/social"
	memorystore "github.com/epik-app/go-auth/storage/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "client-123"
)

type oidcFixture struct {
	cfg     social.OIDCProviderConfig
	fetcher *rawFetcher
	now     time.Time
	current signingKey
	next    signingKey
}

func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()
	a, b := rsaKeys(t)
	f := &oidcFixture{
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		current: signingKey{"kid-1", a},
		next:    signingKey{"kid-2", b},
	}
	f.fetcher = &rawFetcher{doc: jwksDocument(t, f.current)}
	f.cfg = social.OIDCProviderConfig{
		Name:             social.ProviderKakao,
		Issuer:           testIssuer,
		ValidateAudience: social.AudienceContains(testAudience),
		Claims:           social.ClaimNames{DisplayName: "nickname"},
		Keys: social.NewCachedKeySet(social.ProviderKakao, f.fetcher, memorystore.NewKV(),
			social.WithRefetchLimit(time.Hour, 1)),
		Now: func() time.Time { return f.now },
	}
	return f
}

func TestVerifyIDToken_Valid(t *testing.T) {
	f := newOIDCFixture(t)
	claims := idClaims(testIssuer, testAudience, "12345", f.now.Add(time.Hour))
	claims["nickname"] = " Tester "

	identity, err := social.VerifyIDToken(context.Background(), f.cfg, signIDToken(t, f.current, claims))
	require.NoError(t, err)

	assert.Equal(t, social.ProviderKakao, identity.Provider)
	assert.Equal(t, testIssuer, identity.Issuer)
	assert.Equal(t, []string{testAudience}, identity.Audience)
	assert.Equal(t, "12345", identity.Subject)
	assert.Equal(t, "12345@example.com", identity.Email)
	assert.Equal(t, "Tester", identity.DisplayName)
}

func TestVerifyIDToken_KeyRotation(t *testing.T) {
	f := newOIDCFixture(t)
	ctx := context.Background()

	_, err := social.VerifyIDToken(ctx, f.cfg, signIDToken(t, f.current, idClaims(testIssuer, testAudience, "1", f.now.Add(time.Hour))))
	require.NoError(t, err)
	require.EqualValues(t, 1, f.fetcher.calls.Load())

	// provider rotates to a new key
	f.fetcher.set(jwksDocument(t, f.next))

	identity, err := social.VerifyIDToken(ctx, f.cfg, signIDToken(t, f.next, idClaims(testIssuer, testAudience, "2", f.now.Add(time.Hour))))
	require.NoError(t, err)
	assert.Equal(t, "2", identity.Subject)
	assert.EqualValues(t, 2, f.fetcher.calls.Load())
}

func TestVerifyIDToken_RotationAfterUnknownKid(t *testing.T) {
	a, b := rsaKeys(t)
	current, next := signingKey{"kid-1", a}, signingKey{"kid-2", b}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetcher := &rawFetcher{doc: jwksDocument(t, current)}
	cfg := social.OIDCProviderConfig{
		Name:             social.ProviderKakao,
		Issuer:           testIssuer,
		ValidateAudience: social.AudienceContains(testAudience),
		Keys:             social.NewCachedKeySet(social.ProviderKakao, fetcher, memorystore.NewKV()),
		Now:              func() time.Time { return now },
	}
	ctx := context.Background()

	_, err := social.VerifyIDToken(ctx, cfg, signIDToken(t, current, idClaims(testIssuer, testAudience, "1", now.Add(time.Hour))))
	require.NoError(t, err)

	forged := signIDToken(t, signingKey{"made-up", b}, idClaims(testIssuer, testAudience, "1", now.Add(time.Hour)))
	_, err = social.VerifyIDToken(ctx, cfg, forged)
	require.Error(t, err)
	assert.Equal(t, social.TextCodeProviderProtocol, auth.TextCodeOf(err))
	require.EqualValues(t, 2, fetcher.calls.Load())

	fetcher.set(jwksDocument(t, next))

	identity, err := social.VerifyIDToken(ctx, cfg, signIDToken(t, next, idClaims(testIssuer, testAudience, "2", now.Add(time.Hour))))
	require.NoError(t, err)
	assert.Equal(t, "2", identity.Subject)
	assert.EqualValues(t, 3, fetcher.calls.Load())
}

func TestVerifyIDToken_UnknownKidAfterRefetch(t *testing.T) {
	f := newOIDCFixture(t)
	ctx := context.Background()

	token := signIDToken(t, f.next, idClaims(testIssuer, testAudience, "1", f.now.Add(time.Hour)))

	_, err := social.VerifyIDToken(ctx, f.cfg, token)
	require.Error(t, err)
	assert.Equal(t, social.TextCodeProviderProtocol, auth.TextCodeOf(err))
	assert.EqualValues(t, 2, f.fetcher.calls.Load(), "one cold fetch and one forced refetch")

	// forced refetch budget is spent, the cache answers
	_, err = social.VerifyIDToken(ctx, f.cfg, token)
	require.Error(t, err)
	assert.EqualValues(t, 2, f.fetcher.calls.Load())
}

func TestVerifyIDToken_Rejections(t *testing.T) {
	f := newOIDCFixture(t)
	valid := func() jwt.MapClaims {
		return idClaims(testIssuer, testAudience, "12345", f.now.Add(time.Hour))
	}

	tests := []struct {
		name     string
		token    func(t *testing.T) string
		textCode string
	}{
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signIDToken(t, f.current, idClaims(testIssuer, testAudience, "1", f.now.Add(-time.Minute)))
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "missing exp",
			token: func(t *testing.T) string {
				c := valid()
				delete(c, "exp")
				return signIDToken(t, f.current, c)
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return signIDToken(t, f.current, idClaims("https://evil.example.com", testAudience, "1", f.now.Add(time.Hour)))
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				return signIDToken(t, f.current, idClaims(testIssuer, "someone-else", "1", f.now.Add(time.Hour)))
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				c := valid()
				delete(c, "sub")
				return signIDToken(t, f.current, c)
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "bad signature",
			token: func(t *testing.T) string {
				forged := signingKey{kid: f.current.kid, priv: f.next.priv}
				return signIDToken(t, forged, valid())
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "hmac algorithm",
			token: func(t *testing.T) string {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, valid())
				token.Header["kid"] = f.current.kid
				raw, err := token.SignedString([]byte("0123456789abcdef0123456789abcdef"))
				require.NoError(t, err)
				return raw
			},
			textCode: auth.TextCodeInvalidOrExpiredToken,
		},
		{
			name: "missing kid",
			token: func(t *testing.T) string {
				return signIDToken(t, signingKey{priv: f.current.priv}, valid())
			},
			textCode: social.TextCodeProviderProtocol,
		},
		{
			name:     "not a jwt",
			token:    func(t *testing.T) string { return "abc.def" },
			textCode: auth.TextCodeMalformedToken,
		},
		{
			name:     "garbage header",
			token:    func(t *testing.T) string { return "!!!.e30.sig" },
			textCode: auth.TextCodeMalformedToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := social.VerifyIDToken(context.Background(), f.cfg, tt.token(t))
			require.Error(t, err)
			assert.Equal(t, tt.textCode, auth.TextCodeOf(err))
		})
	}
}

func TestVerifyIDToken_KeySetUnavailable(t *testing.T) {
	f := newOIDCFixture(t)
	f.cfg.Keys = social.NewCachedKeySet(social.ProviderGoogle,
		social.NewHTTPKeySetFetcher(social.ProviderGoogle, "http://127.0.0.1:1/jwks", &http.Client{Timeout: time.Second}),
		nil)

	_, err := social.VerifyIDToken(context.Background(), f.cfg,
		signIDToken(t, f.current, idClaims(testIssuer, testAudience, "1", f.now.Add(time.Hour))))
	require.Error(t, err)
	assert.Equal(t, social.TextCodeProviderDown, auth.TextCodeOf(err))
}

func TestAudienceContains(t *testing.T) {
	check := social.AudienceContains("a", " ", "b")
	assert.True(t, check([]string{"x", "b"}))
	assert.False(t, check([]string{"x"}))
	assert.False(t, check(nil))
	assert.False(t, check([]string{""}))
}

func TestOIDCVerifier(t *testing.T) {
	f := newOIDCFixture(t)
	v := social.NewOIDCVerifier(f.cfg)
	assert.Equal(t, social.ProviderKakao, v.Config().Name)

	identity, err := v.Verify(context.Background(),
		signIDToken(t, f.current, idClaims(testIssuer, testAudience, "abc", f.now.Add(time.Hour))))
	require.NoError(t, err)
	assert.Equal(t, "abc", identity.Subject)
}

func TestVerifyIDToken_AudienceList(t *testing.T) {
	f := newOIDCFixture(t)
	claims := idClaims(testIssuer, "", "12345", f.now.Add(time.Hour))
	claims["aud"] = []string{"clientA", "clientB"}
	token := signIDToken(t, f.current, claims)

	f.cfg.ValidateAudience = social.AudienceContains("clientB")
	identity, err := social.VerifyIDToken(context.Background(), f.cfg, token)
	require.NoError(t, err)
	assert.Equal(t, []string{"clientA", "clientB"}, identity.Audience)

	f.cfg.ValidateAudience = social.AudienceContains("clientC")
	_, err = social.VerifyIDToken(context.Background(), f.cfg, token)
	assert.Equal(t, auth.TextCodeInvalidOrExpiredToken, auth.TextCodeOf(err))
}
