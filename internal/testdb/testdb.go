// Package testdb opens throwaway sqlite databases carrying the auth schema.
package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	auth "github.com/epik-app/go-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// Open returns an in-memory database with the auth tables, the default
// consent items and any extra models created.
func Open(t testing.TB, extra ...any) *bun.DB {
	t.Helper()

	// a named shared cache keeps one database per test across connections
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, auth.CreateSchema(ctx, db, extra...))
	require.NoError(t, auth.SeedConsentItems(ctx, db, auth.DefaultConsentItems))

	return db
}

// Manager is Open wrapped in a RepositoryManager.
func Manager(t testing.TB, extra ...any) auth.RepositoryManager {
	t.Helper()
	return auth.NewRepositoryManager(Open(t, extra...))
}

// CreateUser inserts a user with an optional password.
func CreateUser(t testing.TB, repo auth.RepositoryManager, email, nickname, password string) *auth.User {
	t.Helper()

	user := &auth.User{
		Email:    email,
		Nickname: nickname,
		JoinType: auth.JoinTypeEmail,
		Role:     auth.RoleUser,
	}
	if password != "" {
		hash, err := auth.HashPassword(password)
		require.NoError(t, err)
		user.PasswordHash = hash
	} else {
		user.JoinType = auth.JoinTypeSocial
	}

	ctx := context.Background()
	created, err := repo.Users().CreateTx(ctx, repo.DB(), user)
	require.NoError(t, err)
	return created
}
