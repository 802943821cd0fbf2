package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type passwordResetsRepository struct {
	db *bun.DB
}

// NewPasswordResetsRepository creates a bun backed PasswordResetStore.
func NewPasswordResetsRepository(db *bun.DB) PasswordResetStore {
	return &passwordResetsRepository{db: db}
}

// InvalidateActiveTx marks every unused token of the user as used.
func (r *passwordResetsRepository) InvalidateActiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordResetToken)(nil)).
		Set("used = ?", true).
		Set("used_at = ?", at.UTC()).
		Where("user_id = ?", userID).
		Where("used = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, Internal(err, "failed to invalidate password reset tokens")
	}
	return res.RowsAffected()
}

func (r *passwordResetsRepository) CreateTx(ctx context.Context, tx bun.IDB, reset *PasswordResetToken) error {
	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}
	reset.CreatedAt = reset.CreatedAt.UTC()
	reset.ExpiresAt = reset.ExpiresAt.UTC()

	if _, err := tx.NewInsert().Model(reset).Exec(ctx); err != nil {
		return Internal(err, "failed to create password reset token")
	}
	return nil
}

func (r *passwordResetsRepository) FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordResetToken, error) {
	if tx == nil {
		tx = r.db
	}

	reset := &PasswordResetToken{}
	err := tx.NewSelect().
		Model(reset).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, WithSource(ErrInvalidToken, err, nil)
		}
		return nil, Internal(err, "failed to load password reset token")
	}
	return reset, nil
}

// MarkUsedTx flips the token to used, reporting false if it already was.
func (r *passwordResetsRepository) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordResetToken)(nil)).
		Set("used = ?", true).
		Set("used_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("used = ?", false).
		Exec(ctx)
	if err != nil {
		return false, Internal(err, "failed to mark password reset token as used")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, Internal(err, "failed to mark password reset token as used")
	}
	return n == 1, nil
}

func (r *passwordResetsRepository) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := r.db.NewSelect().
		Model((*PasswordResetToken)(nil)).
		Where("user_id = ?", userID).
		Where("used = ?", false).
		Count(ctx)
	if err != nil {
		return 0, Internal(err, "failed to count password reset tokens")
	}
	return n, nil
}

// DeleteStale removes tokens that expired, or were used, before the cutoff.
func (r *passwordResetsRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*PasswordResetToken)(nil)).
		WhereGroup(" AND ", func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.
				Where("expires_at < ?", before.UTC()).
				WhereOr("used = ? AND used_at < ?", true, before.UTC())
		}).
		Exec(ctx)
	if err != nil {
		return 0, Internal(err, "failed to purge password reset tokens")
	}
	return res.RowsAffected()
}
