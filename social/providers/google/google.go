// Package google configures Google ID token verification.
package google

import (
	"net/http"

	"github.com/epik-app/go-auth/social"
)

const (
	DefaultIssuer  = "https://accounts.google.com"
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// Config holds Google ID token settings.
type Config struct {
	// ClientIDs are the OAuth client ids of the apps that may present
	// tokens. The token audience must include one of them.
	ClientIDs []string

	Issuer  string
	JWKSURL string

	HTTPClient *http.Client
	// Store caches the key set. Nil disables caching.
	Store      social.EphemeralStore
	KeySetOpts []social.KeySetOption
}

func (c Config) withDefaults() Config {
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.JWKSURL == "" {
		c.JWKSURL = DefaultJWKSURL
	}
	return c
}

// ProviderConfig returns the OIDC configuration for cfg.
func ProviderConfig(cfg Config) social.OIDCProviderConfig {
	cfg = cfg.withDefaults()
	fetcher := social.NewHTTPKeySetFetcher(social.ProviderGoogle, cfg.JWKSURL, cfg.HTTPClient)

	return social.OIDCProviderConfig{
		Name:             social.ProviderGoogle,
		Issuer:           cfg.Issuer,
		ValidateAudience: social.AudienceContains(cfg.ClientIDs...),
		Claims: social.ClaimNames{
			Subject:     "sub",
			Email:       "email",
			DisplayName: "name",
		},
		Keys: social.NewCachedKeySet(social.ProviderGoogle, fetcher, cfg.Store, cfg.KeySetOpts...),
	}
}

// New creates a Google ID token verifier.
func New(cfg Config) *social.OIDCVerifier {
	return social.NewOIDCVerifier(ProviderConfig(cfg))
}

// Entry returns the registry entry for Google.
func Entry(cfg Config) social.RegistryEntry {
	return social.RegistryEntry{Provider: social.ProviderGoogle, Verifier: New(cfg)}
}
