package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind discriminates the purpose of a token signed with the shared key.
type TokenKind = string

const (
	TokenKindAccess   TokenKind = "access"
	TokenKindRefresh  TokenKind = "refresh"
	TokenKindRegister TokenKind = "register"
)

// RegisterSubject is the sub claim of every register token.
const RegisterSubject = "social_signup"

// AccessClaims are carried by access and refresh tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	Kind     TokenKind `json:"typ"`
	UserRole string    `json:"role"`
}

// UserID returns the subject, the id of the authenticated user.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// Role returns the global role
func (c *AccessClaims) Role() string {
	return c.UserRole
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (c *AccessClaims) IsAtLeast(minRole string) bool {
	return RoleIsAtLeast(c.UserRole, minRole)
}

// Expires returns the expiration time
func (c *AccessClaims) Expires() time.Time {
	return numericTime(c.ExpiresAt)
}

// Issued returns the issued at time
func (c *AccessClaims) Issued() time.Time {
	return numericTime(c.IssuedAt)
}

// RegisterClaims carry pending social signup data between the social
// login call and the signup completion call.
type RegisterClaims struct {
	jwt.RegisteredClaims
	Kind     TokenKind `json:"typ"`
	Provider string    `json:"provider"`
	SocialID string    `json:"socialId"`
	Email    string    `json:"email,omitempty"`
}

// Expires returns the expiration time
func (c *RegisterClaims) Expires() time.Time {
	return numericTime(c.ExpiresAt)
}

func (c *RegisterClaims) isRegister() bool {
	return c.Kind == TokenKindRegister && c.Subject == RegisterSubject
}

func numericTime(d *jwt.NumericDate) time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}
