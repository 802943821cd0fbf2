package repository

import (
	"context"
	"time"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/social"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialLoginRepository implements social.LinkStore using Bun.
type SocialLoginRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewSocialLoginRepository creates a new repository.
func NewSocialLoginRepository(db *bun.DB) *SocialLoginRepository {
	return &SocialLoginRepository{db: db, now: time.Now}
}

// FindByProviderAndSocialID implements social.LinkStore.
func (r *SocialLoginRepository) FindByProviderAndSocialID(ctx context.Context, provider social.ProviderName, socialID string) (*social.SocialLoginLink, error) {
	link := &social.SocialLoginLink{}
	err := r.db.NewSelect().
		Model(link).
		Where("provider = ? AND social_id = ?", provider, socialID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, auth.Internal(err, "failed to find social login")
	}
	return link, nil
}

// FindByUserID implements social.LinkStore.
func (r *SocialLoginRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*social.SocialLoginLink, error) {
	var links []*social.SocialLoginLink
	err := r.db.NewSelect().
		Model(&links).
		Where("user_id = ?", userID).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return nil, auth.Internal(err, "failed to list social logins")
	}
	return links, nil
}

// CreateTx implements social.LinkStore.
func (r *SocialLoginRepository) CreateTx(ctx context.Context, tx bun.IDB, link *social.SocialLoginLink) error {
	if tx == nil {
		tx = r.db
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = r.now().UTC()
	}

	if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
		if auth.IsUniqueViolation(err) {
			return auth.WithSource(social.ErrAlreadyLinked, err, map[string]any{
				"provider":  string(link.Provider),
				"social_id": link.SocialID,
			})
		}
		return auth.Internal(err, "failed to create social login")
	}
	return nil
}

// DeleteByUserAndProvider removes a user's link to provider.
func (r *SocialLoginRepository) DeleteByUserAndProvider(ctx context.Context, userID uuid.UUID, provider social.ProviderName) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*social.SocialLoginLink)(nil)).
		Where("user_id = ? AND provider = ?", userID, provider).
		Exec(ctx)
	if err != nil {
		return false, auth.Internal(err, "failed to delete social login")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
