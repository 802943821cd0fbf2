package social

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	auth "github.com/epik-app/go-auth"
	"github.com/golang-jwt/jwt/v5"
)

// ClaimNames maps identity fields to provider claim names.
type ClaimNames struct {
	Subject     string
	Email       string
	DisplayName string
}

// OIDCProviderConfig describes an OpenID Connect provider.
type OIDCProviderConfig struct {
	Name             ProviderName
	Issuer           string
	ValidateAudience func(aud []string) bool
	Claims           ClaimNames
	Keys             KeySetFetcher
	// Now defaults to time.Now.
	Now func() time.Time
}

type idTokenHeader struct {
	Kid string `json:"kid"`
	Alg string `json:"alg"`
}

// VerifyIDToken checks an ID token against cfg and returns the identity it
// asserts.
func VerifyIDToken(ctx context.Context, cfg OIDCProviderConfig, raw string) (*Identity, error) {
	header, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if header.Kid == "" {
		return nil, wrapProviderError(ErrProviderProtocol, cfg.Name, "id_token", nil).
			WithMetadata(map[string]any{"reason": "missing kid"})
	}

	keys, err := cfg.Keys.KeySet(ctx, false)
	if err != nil {
		return nil, err
	}
	if !keys.Has(header.Kid) {
		keys, err = refetchKeySet(ctx, cfg.Keys, header.Kid)
		if err != nil {
			return nil, err
		}
		if !keys.Has(header.Kid) {
			return nil, wrapProviderError(ErrProviderProtocol, cfg.Name, "id_token", nil).
				WithMetadata(map[string]any{"reason": "unknown kid", "kid": header.Kid})
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, keys.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, auth.WithSource(auth.ErrInvalidOrExpiredToken, err, map[string]any{"provider": string(cfg.Name)})
	}

	aud, err := claims.GetAudience()
	if err != nil || len(aud) == 0 || cfg.ValidateAudience == nil || !cfg.ValidateAudience(aud) {
		return nil, auth.WithSource(auth.ErrInvalidOrExpiredToken, err, map[string]any{
			"provider": string(cfg.Name),
			"reason":   "audience",
		})
	}

	names := cfg.Claims.withDefaults()
	identity := &Identity{
		Provider:    cfg.Name,
		Issuer:      cfg.Issuer,
		Audience:    []string(aud),
		Subject:     stringClaim(claims, names.Subject),
		Email:       stringClaim(claims, names.Email),
		DisplayName: stringClaim(claims, names.DisplayName),
	}
	if identity.Subject == "" {
		return nil, auth.WithSource(auth.ErrInvalidOrExpiredToken, nil, map[string]any{
			"provider": string(cfg.Name),
			"reason":   "subject",
		})
	}

	return identity, nil
}

func refetchKeySet(ctx context.Context, keys KeySetFetcher, kid string) (*KeySet, error) {
	if r, ok := keys.(KeyRefresher); ok {
		return r.Refresh(ctx, kid)
	}
	return keys.KeySet(ctx, true)
}

func decodeHeader(raw string) (*idTokenHeader, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, auth.WithSource(auth.ErrMalformedToken, nil, map[string]any{"reason": "segments"})
	}

	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[0], "="))
	if err != nil {
		return nil, auth.WithSource(auth.ErrMalformedToken, err, map[string]any{"reason": "header encoding"})
	}

	header := &idTokenHeader{}
	if err := json.Unmarshal(b, header); err != nil {
		return nil, auth.WithSource(auth.ErrMalformedToken, err, map[string]any{"reason": "header json"})
	}
	return header, nil
}

func (c ClaimNames) withDefaults() ClaimNames {
	if c.Subject == "" {
		c.Subject = "sub"
	}
	if c.Email == "" {
		c.Email = "email"
	}
	if c.DisplayName == "" {
		c.DisplayName = "name"
	}
	return c
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// OIDCVerifier adapts an OIDCProviderConfig to Verifier.
type OIDCVerifier struct {
	cfg OIDCProviderConfig
}

// NewOIDCVerifier returns a Verifier for cfg.
func NewOIDCVerifier(cfg OIDCProviderConfig) *OIDCVerifier {
	return &OIDCVerifier{cfg: cfg}
}

// Verify implements Verifier.
func (v *OIDCVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	return VerifyIDToken(ctx, v.cfg, token)
}

// Config returns the provider configuration.
func (v *OIDCVerifier) Config() OIDCProviderConfig {
	return v.cfg
}

// AudienceContains accepts audiences that include any of ids.
func AudienceContains(ids ...string) func(aud []string) bool {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	return func(aud []string) bool {
		for _, a := range aud {
			if _, ok := allowed[a]; ok {
				return true
			}
		}
		return false
	}
}
