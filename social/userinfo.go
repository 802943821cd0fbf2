package social

import (
	"context"
	"io"
	"net/http"
	"strings"

	auth "github.com/epik-app/go-auth"
)

// UserInfoDecoder turns a 2xx user-info body into an Identity. It returns an
// error when the body reports an application level failure.
type UserInfoDecoder func(body []byte) (*Identity, error)

// UserInfoConfig describes an OAuth2 user-info endpoint.
type UserInfoConfig struct {
	Name       ProviderName
	URL        string
	Issuer     string
	Decode     UserInfoDecoder
	HTTPClient *http.Client
}

// UserInfoVerifier verifies provider access tokens by calling the provider's
// user-info endpoint.
type UserInfoVerifier struct {
	cfg    UserInfoConfig
	client *http.Client
}

// NewUserInfoVerifier creates the verifier. A nil client gets a
// DefaultHTTPTimeout client.
func NewUserInfoVerifier(cfg UserInfoConfig) *UserInfoVerifier {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &UserInfoVerifier{cfg: cfg, client: client}
}

// Verify implements Verifier.
func (v *UserInfoVerifier) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, auth.WithSource(auth.ErrInvalidInput, nil, map[string]any{"access_token": "cannot be blank"})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL, nil)
	if err != nil {
		return nil, auth.Internal(err, "failed to build user info request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, wrapProviderError(ErrProviderUnavailable, v.cfg.Name, "user_info", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, wrapProviderError(ErrProviderUnavailable, v.cfg.Name, "user_info", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, wrapProviderError(ErrSocialTokenInvalid, v.cfg.Name, "user_info", &ProviderError{
			Provider:  v.cfg.Name,
			Operation: "user_info",
			Status:    resp.StatusCode,
		})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, wrapProviderError(ErrProviderAPI, v.cfg.Name, "user_info", &ProviderError{
			Provider:  v.cfg.Name,
			Operation: "user_info",
			Status:    resp.StatusCode,
		})
	}

	identity, err := v.cfg.Decode(body)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, v.cfg.Name, "user_info", err)
	}
	if identity == nil || identity.Subject == "" {
		return nil, wrapProviderError(ErrUserInfoFailed, v.cfg.Name, "user_info", &ProviderError{
			Provider:  v.cfg.Name,
			Operation: "user_info",
			Message:   "missing subject",
		})
	}

	identity.Provider = v.cfg.Name
	if identity.Issuer == "" {
		identity.Issuer = v.cfg.Issuer
	}
	return identity, nil
}
