// Package kakao configures Kakao OIDC ID token verification.
package kakao

import (
	"net/http"

	"github.com/epik-app/go-auth/social"
)

const (
	DefaultIssuer  = "https://kauth.kakao.com"
	DefaultJWKSURL = "https://kauth.kakao.com/.well-known/jwks.json"
)

// Config holds Kakao ID token settings.
type Config struct {
	// AppKey is the native app key; Kakao uses it as the token audience.
	AppKey string

	Issuer  string
	JWKSURL string

	HTTPClient *http.Client
	Store      social.EphemeralStore
	KeySetOpts []social.KeySetOption
}

// ProviderConfig returns the OIDC configuration for cfg.
func ProviderConfig(cfg Config) social.OIDCProviderConfig {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}

	fetcher := social.NewHTTPKeySetFetcher(social.ProviderKakao, cfg.JWKSURL, cfg.HTTPClient)
	return social.OIDCProviderConfig{
		Name:             social.ProviderKakao,
		Issuer:           cfg.Issuer,
		ValidateAudience: social.AudienceContains(cfg.AppKey),
		Claims: social.ClaimNames{
			Subject:     "sub",
			Email:       "email",
			DisplayName: "nickname",
		},
		Keys: social.NewCachedKeySet(social.ProviderKakao, fetcher, cfg.Store, cfg.KeySetOpts...),
	}
}

// New creates a Kakao ID token verifier.
func New(cfg Config) *social.OIDCVerifier {
	return social.NewOIDCVerifier(ProviderConfig(cfg))
}

// Entry returns the registry entry for Kakao.
func Entry(cfg Config) social.RegistryEntry {
	return social.RegistryEntry{Provider: social.ProviderKakao, Verifier: New(cfg)}
}
