package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL   = 30 * time.Minute
	DefaultRefreshTokenTTL  = 14 * 24 * time.Hour
	DefaultRegisterTokenTTL = 10 * time.Minute
)

// TokenService issues and verifies the tokens signed by this service.
type TokenService interface {
	IssueAccessToken(userID, role string) (string, error)
	IssueRefreshToken(userID, role string) (string, error)
	IssueRegisterToken(provider, socialID, email string) (string, error)
	// Verify accepts access and refresh tokens.
	Verify(token string) (*AccessClaims, error)
	VerifyAccessToken(token string) (*AccessClaims, error)
	VerifyRefreshToken(token string) (*AccessClaims, error)
	VerifyRegisterToken(token string) (*RegisterClaims, error)
	ExtractExpiry(token string) (time.Time, error)
	RefreshTokenTTL() time.Duration
}

// JwtTokenService implements the TokenService interface with HS256 tokens.
type JwtTokenService struct {
	key         KeyMaterial
	issuer      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	registerTTL time.Duration
	now         func() time.Time
	logger      Logger
}

// TokenServiceOption customizes the token service.
type TokenServiceOption func(*JwtTokenService)

// WithIssuer sets the iss claim and requires it on verification.
func WithIssuer(issuer string) TokenServiceOption {
	return func(s *JwtTokenService) {
		s.issuer = issuer
	}
}

// WithTokenTTLs overrides the token lifetimes. Zero values keep the default.
func WithTokenTTLs(access, refresh, register time.Duration) TokenServiceOption {
	return func(s *JwtTokenService) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
		if register > 0 {
			s.registerTTL = register
		}
	}
}

// WithClock injects the time source, useful for tests.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *JwtTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenLogger sets the logger used by the token service.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(s *JwtTokenService) {
		s.logger = loggerOrDefault(logger)
	}
}

// NewJwtTokenService creates a new token service
func NewJwtTokenService(key KeyMaterial, opts ...TokenServiceOption) (*JwtTokenService, error) {
	if key.IsZero() {
		return nil, goerrors.New("token service requires key material", goerrors.CategoryInternal)
	}

	s := &JwtTokenService{
		key:         key,
		accessTTL:   DefaultAccessTokenTTL,
		refreshTTL:  DefaultRefreshTokenTTL,
		registerTTL: DefaultRegisterTokenTTL,
		now:         time.Now,
		logger:      defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.refreshTTL <= s.accessTTL {
		return nil, goerrors.New("refresh token ttl must be longer than access token ttl", goerrors.CategoryInternal).
			WithMetadata(map[string]any{
				"access_ttl":  s.accessTTL.String(),
				"refresh_ttl": s.refreshTTL.String(),
			})
	}

	return s, nil
}

// NewTokenServiceFromConfig builds the token service from Config.
func NewTokenServiceFromConfig(cfg Config, logger Logger) (*JwtTokenService, error) {
	key, err := NewKeyMaterial(cfg.GetSigningKey())
	if err != nil {
		return nil, err
	}
	return NewJwtTokenService(key,
		WithIssuer(cfg.GetIssuer()),
		WithTokenTTLs(cfg.GetAccessTokenTTL(), cfg.GetRefreshTokenTTL(), cfg.GetRegisterTokenTTL()),
		WithTokenLogger(logger),
	)
}

// RefreshTokenTTL returns the refresh token lifetime.
func (s *JwtTokenService) RefreshTokenTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccessToken signs {sub, role, iat, exp=iat+accessTTL}.
func (s *JwtTokenService) IssueAccessToken(userID, role string) (string, error) {
	return s.issueUserToken(TokenKindAccess, userID, role, s.accessTTL)
}

// IssueRefreshToken signs {sub, role, iat, exp=iat+refreshTTL}.
func (s *JwtTokenService) IssueRefreshToken(userID, role string) (string, error) {
	return s.issueUserToken(TokenKindRefresh, userID, role, s.refreshTTL)
}

func (s *JwtTokenService) issueUserToken(kind TokenKind, userID, role string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", goerrors.New("token subject must not be empty", goerrors.CategoryInternal)
	}

	now := s.now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Kind:     kind,
		UserRole: role,
	}
	return s.sign(claims)
}

// IssueRegisterToken signs a short lived token carrying pending signup data.
func (s *JwtTokenService) IssueRegisterToken(provider, socialID, email string) (string, error) {
	if provider == "" || socialID == "" {
		return "", goerrors.New("register token requires provider and social id", goerrors.CategoryInternal)
	}

	now := s.now()
	claims := &RegisterClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   RegisterSubject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.registerTTL)),
			ID:        uuid.NewString(),
		},
		Kind:     TokenKindRegister,
		Provider: provider,
		SocialID: socialID,
		Email:    email,
	}
	return s.sign(claims)
}

func (s *JwtTokenService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.key.secret)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify parses an access or refresh token.
func (s *JwtTokenService) Verify(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(raw, claims); err != nil {
		return nil, err
	}

	switch claims.Kind {
	case TokenKindAccess, TokenKindRefresh:
	default:
		s.logger.Debug("token presented for the wrong purpose", "kind", claims.Kind)
		return nil, WithSource(ErrInvalidOrExpiredToken, nil, map[string]any{"kind": claims.Kind})
	}

	if claims.Subject == "" || claims.Subject == RegisterSubject {
		return nil, WithSource(ErrInvalidOrExpiredToken, nil, map[string]any{"reason": "subject"})
	}

	return claims, nil
}

// VerifyAccessToken is Verify restricted to access tokens.
func (s *JwtTokenService) VerifyAccessToken(raw string) (*AccessClaims, error) {
	return s.verifyKind(raw, TokenKindAccess)
}

// VerifyRefreshToken is Verify restricted to refresh tokens.
func (s *JwtTokenService) VerifyRefreshToken(raw string) (*AccessClaims, error) {
	return s.verifyKind(raw, TokenKindRefresh)
}

func (s *JwtTokenService) verifyKind(raw string, kind TokenKind) (*AccessClaims, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, WithSource(ErrInvalidOrExpiredToken, nil, map[string]any{
			"kind":     claims.Kind,
			"expected": kind,
		})
	}
	return claims, nil
}

// VerifyRegisterToken parses a register token and checks its purpose before
// any other field is trusted.
func (s *JwtTokenService) VerifyRegisterToken(raw string) (*RegisterClaims, error) {
	claims := &RegisterClaims{}
	if err := s.parse(raw, claims); err != nil {
		return nil, err
	}

	if !claims.isRegister() {
		s.logger.Debug("register token purpose mismatch", "kind", claims.Kind, "sub", claims.Subject)
		return nil, WithSource(ErrInvalidOrExpiredToken, nil, map[string]any{"reason": "purpose"})
	}

	if claims.Provider == "" || claims.SocialID == "" {
		return nil, WithSource(ErrInvalidOrExpiredToken, nil, map[string]any{"reason": "incomplete"})
	}

	return claims, nil
}

// ExtractExpiry returns the exp claim of a verified access or refresh token.
func (s *JwtTokenService) ExtractExpiry(raw string) (time.Time, error) {
	claims, err := s.Verify(raw)
	if err != nil {
		return time.Time{}, err
	}
	return claims.Expires(), nil
}

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

func (s *JwtTokenService) parse(raw string, claims jwt.Claims) error {
	if strings.Count(raw, ".") != 2 {
		return WithSource(ErrMalformedToken, nil, map[string]any{"reason": "segments"})
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			s.logger.Error("token service encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("%w: %v", errUnexpectedSigningMethod, t.Header["alg"])
		}
		return s.key.secret, nil
	}, opts...)
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return WithSource(ErrMalformedToken, err, nil)
	case errors.Is(err, jwt.ErrTokenExpired):
		return WithSource(ErrExpiredToken, err, nil)
	case s.expiredUnverified(raw):
		// exp wins over a bad signature
		return WithSource(ErrExpiredToken, err, nil)
	case errors.Is(err, errUnexpectedSigningMethod):
		return WithSource(ErrMalformedToken, err, map[string]any{"reason": "signing method"})
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return WithSource(ErrInvalidSignature, err, nil)
	default:
		return WithSource(ErrInvalidOrExpiredToken, err, nil)
	}
}

func (s *JwtTokenService) expiredUnverified(raw string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time)
}
