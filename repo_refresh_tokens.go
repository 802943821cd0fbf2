package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type refreshTokensRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewRefreshTokensRepository creates a bun backed RefreshTokenStore.
func NewRefreshTokensRepository(db *bun.DB) RefreshTokenStore {
	return &refreshTokensRepository{db: db, now: time.Now}
}

func (r *refreshTokensRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, WithSource(ErrRefreshTokenNotFound, err, map[string]any{"user_id": userID.String()})
		}
		return nil, Internal(err, "failed to load refresh token")
	}
	return record, nil
}

// Upsert overwrites the user's row in place, inserting it on first login.
func (r *refreshTokensRepository) Upsert(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	now := r.now().UTC()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.NewInsert().
		Model(record).
		On("CONFLICT (user_id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return Internal(err, "failed to store refresh token")
	}
	return nil
}

func (r *refreshTokensRepository) Swap(ctx context.Context, userID uuid.UUID, current, next string, expiresAt time.Time) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("token = ?", next).
		Set("expires_at = ?", expiresAt.UTC()).
		Set("updated_at = ?", r.now().UTC()).
		Where("user_id = ?", userID).
		Where("token = ?", current).
		Exec(ctx)
	if err != nil {
		return false, Internal(err, "failed to rotate refresh token")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Internal(err, "failed to rotate refresh token")
	}
	return n == 1, nil
}

func (r *refreshTokensRepository) DeleteMatching(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, Internal(err, "failed to delete refresh token")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *refreshTokensRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, Internal(err, "failed to purge refresh tokens")
	}
	return res.RowsAffected()
}
