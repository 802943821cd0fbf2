package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type usersRepository struct {
	db  *bun.DB
	now func() time.Time
}

// NewUsersRepository creates a bun backed UserStore.
func NewUsersRepository(db *bun.DB) UserStore {
	return &usersRepository{db: db, now: time.Now}
}

func (r *usersRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	user := &User{}
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, WithSource(ErrUserNotFound, err, nil)
		}
		return nil, Internal(err, "failed to find user by email")
	}
	return user, nil
}

func (r *usersRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, WithSource(ErrUserNotFound, err, map[string]any{"user_id": id.String()})
		}
		return nil, Internal(err, "failed to find user by id")
	}
	return user, nil
}

// ExistsByEmail includes soft deleted rows, the unique index does too.
func (r *usersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		WhereAllWithDeleted().
		Where("email = ?", normalizeEmail(email)).
		Exists(ctx)
	if err != nil {
		return false, Internal(err, "failed to check email")
	}
	return exists, nil
}

func (r *usersRepository) ExistsByNickname(ctx context.Context, nickname string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		WhereAllWithDeleted().
		Where("nickname = ?", strings.TrimSpace(nickname)).
		Exists(ctx)
	if err != nil {
		return false, Internal(err, "failed to check nickname")
	}
	return exists, nil
}

func (r *usersRepository) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.now().UTC()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.Status == "" {
		user.Status = UserStatusActive
	}

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		switch {
		case uniqueViolationOn(err, "email"):
			return nil, WithSource(ErrEmailAlreadyExists, err, nil)
		case uniqueViolationOn(err, "nickname"):
			return nil, WithSource(ErrNicknameAlreadyExists, err, nil)
		}
		return nil, Internal(err, "failed to create user")
	}
	return user, nil
}

// LockTx takes a row lock on the user where the dialect supports it. SQLite
// serializes writers on its own.
func (r *usersRepository) LockTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Column("id").
		Where("id = ?", id)
	if tx.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}

	var locked uuid.UUID
	if err := q.Scan(ctx, &locked); err != nil {
		if isNoRows(err) {
			return WithSource(ErrUserNotFound, err, nil)
		}
		return Internal(err, "failed to lock user")
	}
	return nil
}

func (r *usersRepository) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", r.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return Internal(err, "failed to update user password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return WithSource(ErrUserNotFound, nil, map[string]any{"user_id": id.String()})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
