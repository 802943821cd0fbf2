package auth

import (
	"net/http"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput             = "INVALID_INPUT"
	TextCodeMalformedToken           = "MALFORMED_TOKEN"
	TextCodeExpiredToken             = "EXPIRED_TOKEN"
	TextCodeInvalidSignature         = "INVALID_SIGNATURE"
	TextCodeInvalidOrExpiredToken    = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeRefreshTokenNotFound     = "REFRESH_TOKEN_NOT_FOUND"
	TextCodeInvalidRefreshToken      = "INVALID_REFRESH_TOKEN"
	TextCodeTokenAlreadyUsed         = "TOKEN_ALREADY_USED"
	TextCodeTokenExpired             = "TOKEN_EXPIRED"
	TextCodeInvalidToken             = "INVALID_TOKEN"
	TextCodeEmailAlreadyExists       = "EMAIL_ALREADY_EXISTS"
	TextCodeNicknameAlreadyExists    = "NICKNAME_ALREADY_EXISTS"
	TextCodeForbiddenWord            = "FORBIDDEN_WORD"
	TextCodeRequiredConsentNotAgreed = "REQUIRED_CONSENT_NOT_AGREED"
	TextCodeConsentItemNotFound      = "CONSENT_ITEM_NOT_FOUND"
	TextCodeInvalidCredentials       = "INVALID_CREDENTIALS"
	TextCodeUserNotFound             = "USER_NOT_FOUND"
	TextCodeInternal                 = "INTERNAL_ERROR"
)

// ErrInvalidInput is returned when caller supplied values fail validation.
var ErrInvalidInput = goerrors.New("invalid input value", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrMalformedToken is returned for structurally invalid JWTs.
var ErrMalformedToken = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMalformedToken).
	WithCode(goerrors.CodeBadRequest)

// ErrExpiredToken is returned when the exp claim has passed.
var ErrExpiredToken = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeExpiredToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidSignature is returned when the token signature does not verify.
var ErrInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidOrExpiredToken is the uniform failure for provider tokens and
// for tokens presented for the wrong purpose.
var ErrInvalidOrExpiredToken = goerrors.New("token is invalid or expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidOrExpiredToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenNotFound forces the client to log in again.
var ErrRefreshTokenNotFound = goerrors.New("refresh token not found, login again", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRefreshTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidRefreshToken signals a replayed or concurrently rotated token.
var ErrInvalidRefreshToken = goerrors.New("refresh token is no longer valid, login again", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenAlreadyUsed is returned when redeeming a consumed reset token.
var ErrTokenAlreadyUsed = goerrors.New("password reset token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenAlreadyUsed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned when redeeming a reset token past its expiry.
var ErrTokenExpired = goerrors.New("password reset token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken is returned for unknown reset tokens.
var ErrInvalidToken = goerrors.New("invalid password reset token", goerrors.CategoryNotFound).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

var ErrEmailAlreadyExists = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailAlreadyExists).
	WithCode(goerrors.CodeConflict)

var ErrNicknameAlreadyExists = goerrors.New("nickname already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeNicknameAlreadyExists).
	WithCode(goerrors.CodeConflict)

var ErrForbiddenWord = goerrors.New("nickname contains a forbidden word", goerrors.CategoryValidation).
	WithTextCode(TextCodeForbiddenWord).
	WithCode(goerrors.CodeBadRequest)

var ErrRequiredConsentNotAgreed = goerrors.New("required consent not agreed", goerrors.CategoryValidation).
	WithTextCode(TextCodeRequiredConsentNotAgreed).
	WithCode(goerrors.CodeBadRequest)

var ErrConsentItemNotFound = goerrors.New("consent item not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeConsentItemNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidCredentials is shared by the unknown email and wrong password
// branches of login.
var ErrInvalidCredentials = goerrors.New("email or password is incorrect", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned when a token refers to a missing or deleted user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// legacyCodes maps text codes to the short codes used on the wire by
// existing clients.
var legacyCodesMu sync.RWMutex

var legacyCodes = map[string]string{
	TextCodeInvalidInput:             "C-001",
	TextCodeForbiddenWord:            "C-001",
	TextCodeRequiredConsentNotAgreed: "C-001",
	TextCodeConsentItemNotFound:      "C-001",
	TextCodeInternal:                 "C-500",
	TextCodeEmailAlreadyExists:       "A-001",
	TextCodeNicknameAlreadyExists:    "A-002",
	TextCodeUserNotFound:             "A-003",
	TextCodeInvalidCredentials:       "A-004",
	TextCodeMalformedToken:           "O-001",
	TextCodeInvalidOrExpiredToken:    "O-003",
	TextCodeInvalidSignature:         "T-001",
	TextCodeExpiredToken:             "T-002",
	TextCodeRefreshTokenNotFound:     "T-003",
	TextCodeInvalidRefreshToken:      "T-004",
	TextCodeTokenExpired:             "P-001",
	TextCodeTokenAlreadyUsed:         "P-002",
	TextCodeInvalidToken:             "P-002",
}

// RegisterLegacyCode adds a short wire code for a text code defined
// outside this package.
func RegisterLegacyCode(textCode, code string) {
	legacyCodesMu.Lock()
	defer legacyCodesMu.Unlock()
	legacyCodes[textCode] = code
}

// LegacyCode returns the short wire code for err, C-500 when unknown.
func LegacyCode(err error) string {
	legacyCodesMu.RLock()
	defer legacyCodesMu.RUnlock()
	if code, ok := legacyCodes[TextCodeOf(err)]; ok {
		return code
	}
	return "C-500"
}

// WithSource clones base and attaches the underlying cause and metadata.
// The sentinel itself is never mutated.
func WithSource(base *goerrors.Error, err error, meta map[string]any) *goerrors.Error {
	if base == nil {
		return nil
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if err != nil {
		clone.Source = err
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// Internal wraps an unexpected failure without leaking it to the caller message.
func Internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// TextCodeOf returns the text code of the first rich error in the chain.
func TextCodeOf(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		return rich.TextCode
	}
	return ""
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, code string) bool {
	return err != nil && TextCodeOf(err) == code
}

// HTTPStatus maps err to the status the boundary layer should answer with.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}
