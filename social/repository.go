package social

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialLoginLink binds a provider subject to a local user.
type SocialLoginLink struct {
	bun.BaseModel `bun:"table:social_logins,alias:slg"`
	ID            uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	UserID        uuid.UUID    `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Provider      ProviderName `bun:"provider,notnull,unique:social_logins_provider_social_id" json:"provider"`
	SocialID      string       `bun:"social_id,notnull,unique:social_logins_provider_social_id" json:"social_id"`
	Email         string       `bun:"email,nullzero" json:"email,omitempty"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}

// LinkStore persists social login links.
type LinkStore interface {
	// FindByProviderAndSocialID returns nil when no link exists.
	FindByProviderAndSocialID(ctx context.Context, provider ProviderName, socialID string) (*SocialLoginLink, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*SocialLoginLink, error)
	// CreateTx fails with ErrAlreadyLinked when (provider, social id) is taken.
	CreateTx(ctx context.Context, tx bun.IDB, link *SocialLoginLink) error
}
