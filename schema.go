package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// Models lists the tables owned by this package.
func Models() []any {
	return []any{
		(*User)(nil),
		(*RefreshToken)(nil),
		(*PasswordResetToken)(nil),
		(*ConsentItem)(nil),
		(*UserConsent)(nil),
		(*ForbiddenWord)(nil),
	}
}

// CreateSchema creates the tables for Models plus any extra models.
func CreateSchema(ctx context.Context, db bun.IDB, extra ...any) error {
	models := append(Models(), extra...)
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return Internal(err, "failed to create table")
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*PasswordResetToken)(nil)).
		Index("password_reset_tokens_user_used_idx").
		Column("user_id", "used").
		IfNotExists().
		Exec(ctx); err != nil {
		return Internal(err, "failed to create index")
	}

	return nil
}
