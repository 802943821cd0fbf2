package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// JoinType records how a user registered.
type JoinType = string

const (
	JoinTypeEmail  JoinType = "EMAIL"
	JoinTypeSocial JoinType = "SOCIAL"
)

// UserStatus is the account status
type UserStatus = string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,nullzero" json:"-"`
	Nickname      string     `bun:"nickname,notnull,unique" json:"nickname,omitempty"`
	JoinType      JoinType   `bun:"join_type,notnull" json:"join_type,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Status        UserStatus `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the user was soft deleted.
func (u *User) IsDeleted() bool {
	return u != nil && u.DeletedAt != nil && !u.DeletedAt.IsZero()
}

// RefreshToken is the single active refresh token of a user.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,unique,type:uuid" json:"user_id"`
	Token         string    `bun:"token,notnull" json:"-"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// PasswordResetToken is a single use password reset token.
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	Used          bool       `bun:"used,notnull" json:"used"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// IsExpired reports whether the token is past its expiry at t.
func (p *PasswordResetToken) IsExpired(t time.Time) bool {
	return !t.Before(p.ExpiresAt)
}

// ConsentCode identifies a consent item.
type ConsentCode = string

const (
	ConsentTerms     ConsentCode = "TERMS"
	ConsentPrivacy   ConsentCode = "PRIVACY"
	ConsentLocation  ConsentCode = "LOCATION"
	ConsentMarketing ConsentCode = "MARKETING"
)

// ConsentItem is a legal or marketing consent presented at signup.
type ConsentItem struct {
	bun.BaseModel `bun:"table:consent_items,alias:csi"`
	ID            int64       `bun:"id,pk,autoincrement" json:"id"`
	Code          ConsentCode `bun:"code,notnull" json:"code"`
	Title         string      `bun:"title,notnull" json:"title"`
	Required      bool        `bun:"required,notnull" json:"required"`
	Active        bool        `bun:"active,notnull" json:"active"`
}

// UserConsent is an append-only record of a consent decision.
type UserConsent struct {
	bun.BaseModel `bun:"table:user_consents,alias:usc"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	ConsentItemID int64     `bun:"consent_item_id,notnull" json:"consent_item_id"`
	Agreed        bool      `bun:"agreed,notnull" json:"agreed"`
	AgreedAt      time.Time `bun:"agreed_at,notnull" json:"agreed_at"`
}

// ForbiddenWord is a word nicknames must not contain.
type ForbiddenWord struct {
	bun.BaseModel `bun:"table:forbidden_words,alias:fbw"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Word          string    `bun:"word,notnull,unique" json:"word"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// TokenPair is returned on every successful login.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
