package social

import (
	"net/http"

	auth "github.com/epik-app/go-auth"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeProviderProtocol = "PROVIDER_PROTOCOL_ERROR"
	TextCodeProviderDown     = "PROVIDER_UNAVAILABLE"
	TextCodeProviderServer   = "PROVIDER_SERVER_ERROR"
	TextCodeInvalidProvider  = "INVALID_PROVIDER"
	TextCodeProviderRequired = "PROVIDER_REQUIRED"
	TextCodeSocialToken      = "SOCIAL_TOKEN_INVALID"
	TextCodeProviderAPI      = "PROVIDER_API_ERROR"
	TextCodeUserInfoFail     = "PROVIDER_USER_INFO_FAILED"
	TextCodeEmailRequired    = "EMAIL_REQUIRED"
)

func init() {
	auth.RegisterLegacyCode(TextCodeProviderProtocol, "O-500")
	auth.RegisterLegacyCode(TextCodeProviderDown, "O-500")
	auth.RegisterLegacyCode(TextCodeProviderServer, "O-500")
	auth.RegisterLegacyCode(TextCodeInvalidProvider, "C-002")
	auth.RegisterLegacyCode(TextCodeProviderRequired, "C-001")
	auth.RegisterLegacyCode(TextCodeSocialToken, "O-003")
	auth.RegisterLegacyCode(TextCodeProviderAPI, "O-500")
	auth.RegisterLegacyCode(TextCodeUserInfoFail, "O-500")
	auth.RegisterLegacyCode(TextCodeEmailRequired, "C-001")
}

// ErrProviderProtocol is returned when a provider answers outside of its
// documented contract, such as a token without kid or an unknown key.
var ErrProviderProtocol = errors.New("provider protocol error", errors.CategoryOperation).
	WithTextCode(TextCodeProviderProtocol).
	WithCode(errors.CodeInternal)

// ErrProviderUnavailable is returned on transport failures and timeouts.
var ErrProviderUnavailable = errors.New("provider unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeProviderDown).
	WithCode(http.StatusServiceUnavailable)

// ErrProviderServerError is returned when a key set request fails upstream.
var ErrProviderServerError = errors.New("provider server error", errors.CategoryOperation).
	WithTextCode(TextCodeProviderServer).
	WithCode(http.StatusBadGateway)

// ErrInvalidProvider is returned for unknown or unconfigured providers.
var ErrInvalidProvider = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeInvalidProvider).
	WithCode(errors.CodeNotFound)

var ErrProviderRequired = errors.New("social provider is required", errors.CategoryValidation).
	WithTextCode(TextCodeProviderRequired).
	WithCode(errors.CodeBadRequest)

// ErrSocialTokenInvalid is returned when a provider rejects an access token.
var ErrSocialTokenInvalid = errors.New("social access token is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeSocialToken).
	WithCode(errors.CodeUnauthorized)

var ErrProviderAPI = errors.New("provider api error", errors.CategoryOperation).
	WithTextCode(TextCodeProviderAPI).
	WithCode(http.StatusBadGateway)

// ErrUserInfoFailed is returned when the provider answers 200 with a
// failure result code.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryOperation).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeInternal)

// ErrEmailRequired is returned when neither the register token nor the
// signup request carries an email.
var ErrEmailRequired = errors.New("email is required", errors.CategoryValidation).
	WithTextCode(TextCodeEmailRequired).
	WithCode(errors.CodeBadRequest)

const TextCodeAlreadyLinked = "SOCIAL_ALREADY_LINKED"

// ErrAlreadyLinked is returned by LinkStore.CreateTx when the provider
// subject is linked to a user.
var ErrAlreadyLinked = errors.New("social account is already linked", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyLinked).
	WithCode(errors.CodeConflict)
