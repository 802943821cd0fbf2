// Package repository holds the bun stores that live outside the auth
// package and the database bootstrap.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/social"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to dsn with driver (postgres or sqlite).
func Open(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(driver) {
	case DriverPostgres, "pg", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// Models lists every table of the service.
func Models() []any {
	return append(auth.Models(), (*social.SocialLoginLink)(nil))
}

// Bootstrap creates the schema and seeds the default consent items.
func Bootstrap(ctx context.Context, db *bun.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return auth.Internal(err, "database is not reachable")
	}
	if err := auth.CreateSchema(ctx, db, (*social.SocialLoginLink)(nil)); err != nil {
		return err
	}
	return auth.SeedConsentItems(ctx, db, auth.DefaultConsentItems)
}

// Manager bundles the auth repositories with the social link store.
type Manager struct {
	auth.RepositoryManager
	links *SocialLoginRepository
}

// NewManager wires all stores around db.
func NewManager(db *bun.DB) *Manager {
	return &Manager{
		RepositoryManager: auth.NewRepositoryManager(db),
		links:             NewSocialLoginRepository(db),
	}
}

// Links returns the social link store.
func (m *Manager) Links() *SocialLoginRepository {
	return m.links
}

func (m *Manager) Validate() error {
	if m.links == nil {
		return errors.New("repository links should be initialized")
	}
	return m.RepositoryManager.Validate()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
