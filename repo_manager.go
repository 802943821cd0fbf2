package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	TxRunner
	Validate() error
	MustValidate()
	DB() *bun.DB
	Users() UserStore
	RefreshTokens() RefreshTokenStore
	PasswordResets() PasswordResetStore
	Consents() ConsentStore
	ForbiddenWords() ForbiddenWordStore
}

type mngr struct {
	db             *bun.DB
	users          UserStore
	refreshTokens  RefreshTokenStore
	passwordResets PasswordResetStore
	consents       ConsentStore
	forbiddenWords ForbiddenWordStore
}

// NewRepositoryManager wires the bun repositories around db.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		users:          NewUsersRepository(db),
		refreshTokens:  NewRefreshTokensRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
		consents:       NewConsentsRepository(db),
		forbiddenWords: NewForbiddenWordsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	if m.consents == nil {
		return errors.New("repository consents should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() UserStore {
	return m.users
}

func (m mngr) RefreshTokens() RefreshTokenStore {
	return m.refreshTokens
}

func (m mngr) PasswordResets() PasswordResetStore {
	return m.passwordResets
}

func (m mngr) Consents() ConsentStore {
	return m.consents
}

func (m mngr) ForbiddenWords() ForbiddenWordStore {
	return m.forbiddenWords
}
