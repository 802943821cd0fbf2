package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Logger is the structured logger used across the module. Args are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetRegisterTokenTTL() time.Duration
	GetPasswordResetTTL() time.Duration
}

// TxRunner executes f inside a database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

// UserStore reads and writes user identities.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNickname(ctx context.Context, nickname string) (bool, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	LockTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, hash string) error
}

// RefreshTokenStore persists the single refresh token row each user owns.
type RefreshTokenStore interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*RefreshToken, error)
	Upsert(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	// Swap replaces current with next only if current is still stored.
	Swap(ctx context.Context, userID uuid.UUID, current, next string, expiresAt time.Time) (bool, error)
	DeleteMatching(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordResetStore persists password reset tokens.
type PasswordResetStore interface {
	InvalidateActiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, at time.Time) (int64, error)
	CreateTx(ctx context.Context, tx bun.IDB, reset *PasswordResetToken) error
	FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordResetToken, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (bool, error)
	CountActive(ctx context.Context, userID uuid.UUID) (int, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// ConsentStore reads consent items and appends user consent records.
type ConsentStore interface {
	FindActiveByCode(ctx context.Context, code ConsentCode) (*ConsentItem, error)
	SaveTx(ctx context.Context, tx bun.IDB, consents []*UserConsent) error
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*UserConsent, error)
}

// ForbiddenWordStore lists words nicknames must not contain.
type ForbiddenWordStore interface {
	ListWords(ctx context.Context) ([]string, error)
}

// EmailSender delivers password reset links.
type EmailSender interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// EmailSenderFunc adapts a function to the EmailSender interface.
type EmailSenderFunc func(ctx context.Context, email, token string) error

// SendPasswordReset implements EmailSender.
func (f EmailSenderFunc) SendPasswordReset(ctx context.Context, email, token string) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, token)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(args) {
			fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, "%v", args[i])
		}
	}
	return b.String()
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func loggerOrDefault(logger Logger) Logger {
	if logger == nil {
		return defLogger{}
	}
	return logger
}
