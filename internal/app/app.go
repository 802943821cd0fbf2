// Package app wires the authentication services from configuration.
package app

import (
	"context"
	"errors"
	"io"
	"net/http"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/config"
	"github.com/epik-app/go-auth/email"
	"github.com/epik-app/go-auth/metrics"
	"github.com/epik-app/go-auth/repository"
	"github.com/epik-app/go-auth/social"
	"github.com/epik-app/go-auth/social/providers/google"
	"github.com/epik-app/go-auth/social/providers/kakao"
	"github.com/epik-app/go-auth/social/providers/naver"
	memorystore "github.com/epik-app/go-auth/storage/memory"
	redisstore "github.com/epik-app/go-auth/storage/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// App holds every wired service.
type App struct {
	DB       *bun.DB
	Repo     *repository.Manager
	Tokens   *auth.JwtTokenService
	Refresh  *auth.RefreshTokens
	Auther   *auth.Auther
	Resets   *auth.PasswordResets
	Resolver *social.Resolver
	Cleanup  *auth.Cleanup
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	logger   auth.Logger
	activity auth.ActivitySink
	closers  []io.Closer
}

// Option customizes Build.
type Option func(*App)

// WithActivitySink sends activity events of every service to sink.
func WithActivitySink(sink auth.ActivitySink) Option {
	return func(a *App) {
		a.activity = sink
	}
}

// Build opens the database, bootstraps the schema and wires the services.
func Build(ctx context.Context, cfg *config.Config, logger auth.Logger, opts ...Option) (a *App, err error) {
	if logger == nil {
		logger = auth.DefaultLogger()
	}
	a = &App{logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db)

	if err := repository.Bootstrap(ctx, db); err != nil {
		return nil, err
	}
	a.Repo = repository.NewManager(db)

	reg := prometheus.NewRegistry()
	a.Metrics = metrics.NewCollector(reg)
	a.Gatherer = reg

	a.Tokens, err = auth.NewTokenServiceFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Refresh = auth.NewRefreshTokens(a.Tokens, a.Repo).
		WithActivitySink(a.activity).
		WithLogger(logger).
		WithMetrics(a.Metrics)

	words := auth.NewForbiddenWords(a.Repo.ForbiddenWords(), cfg.Server.ForbiddenTTL)
	hasher := auth.BcryptHasher{}
	a.Auther = auth.NewAuthenticator(a.Repo, a.Refresh, words).
		WithPasswordHasher(hasher).
		WithActivitySink(a.activity).
		WithLogger(logger).
		WithMetrics(a.Metrics)

	mailer, err := a.mailer(cfg)
	if err != nil {
		return nil, err
	}
	a.Resets = auth.NewPasswordResets(a.Repo,
		auth.NewInitializePasswordResetHandler(a.Repo, mailer).
			WithTTL(cfg.GetPasswordResetTTL()).
			WithActivitySink(a.activity).
			WithLogger(logger).
			WithMetrics(a.Metrics),
		auth.NewFinalizePasswordResetHandler(a.Repo).
			WithPasswordHasher(hasher).
			WithActivitySink(a.activity).
			WithLogger(logger).
			WithMetrics(a.Metrics),
	)

	store, err := a.keySetStore(cfg)
	if err != nil {
		return nil, err
	}
	registry, err := a.registry(cfg, store)
	if err != nil {
		return nil, err
	}
	a.Resolver = social.NewResolver(registry, a.Tokens, a.Auther, a.Repo.Users(), a.Repo.Links()).
		WithActivitySink(a.activity).
		WithLogger(logger).
		WithMetrics(a.Metrics)

	a.Cleanup = auth.NewCleanup(a.Refresh, a.Resets, logger)
	return a, nil
}

func (a *App) mailer(cfg *config.Config) (auth.EmailSender, error) {
	if !cfg.MailEnabled() {
		a.logger.Warn("smtp is not configured, password reset mail is disabled")
		return nil, nil
	}
	return email.New(cfg.SMTP.From,
		email.WithSMTP(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}),
		email.WithResetLinkBase(cfg.SMTP.ResetLinkBase),
	)
}

func (a *App) keySetStore(cfg *config.Config) (social.EphemeralStore, error) {
	if cfg.Redis.URL == "" {
		return memorystore.NewKV(), nil
	}
	client, err := redisstore.NewClient(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client)
	return redisstore.NewKV(client, "epik:"), nil
}

func (a *App) registry(cfg *config.Config, store social.EphemeralStore) (*social.Registry, error) {
	client := &http.Client{Timeout: cfg.Providers.HTTPTimeout}
	keyOpts := []social.KeySetOption{
		social.WithKeySetTTL(cfg.Providers.KeySetTTL),
		social.WithRefetchLimit(cfg.Providers.RefetchInterval, 1),
		social.WithFetchTimeout(cfg.Providers.HTTPTimeout),
		social.WithKeySetLogger(a.logger),
		social.WithKeySetMetrics(a.Metrics),
	}

	var entries []social.RegistryEntry
	if cfg.Providers.KakaoAppKey != "" {
		entries = append(entries, kakao.Entry(kakao.Config{
			AppKey:     cfg.Providers.KakaoAppKey,
			HTTPClient: client,
			Store:      store,
			KeySetOpts: keyOpts,
		}))
	}
	if len(cfg.Providers.GoogleClientIDs) > 0 {
		entries = append(entries, google.Entry(google.Config{
			ClientIDs:  cfg.Providers.GoogleClientIDs,
			HTTPClient: client,
			Store:      store,
			KeySetOpts: keyOpts,
		}))
	}
	entries = append(entries, naver.Entry(naver.Config{
		UserInfoURL: cfg.Providers.NaverUserInfo,
		HTTPClient:  client,
	}))

	return social.NewRegistry(entries...)
}

// Close stops the cleanup job and releases connections.
func (a *App) Close() error {
	if a.Cleanup != nil {
		a.Cleanup.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
