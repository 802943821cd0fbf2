// Package naver verifies Naver access tokens against the profile API.
package naver

import (
	"net/http"

	"github.com/epik-app/go-auth/social"
)

const (
	DefaultUserInfoURL = "https://openapi.naver.com/v1/nid/me"
	DefaultIssuer      = "https://nid.naver.com"
)

// Config holds Naver settings.
type Config struct {
	UserInfoURL string
	Issuer      string
	HTTPClient  *http.Client
}

// New creates a Naver access token verifier.
func New(cfg Config) *social.UserInfoVerifier {
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	return social.NewUserInfoVerifier(social.UserInfoConfig{
		Name:       social.ProviderNaver,
		URL:        cfg.UserInfoURL,
		Issuer:     cfg.Issuer,
		Decode:     decodeProfile,
		HTTPClient: cfg.HTTPClient,
	})
}

// Entry returns the registry entry for Naver.
func Entry(cfg Config) social.RegistryEntry {
	return social.RegistryEntry{Provider: social.ProviderNaver, Verifier: New(cfg)}
}
