package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// RefreshTokens enforces the single active refresh token per user policy:
// rotation on reissue, replay detection and matching logout.
type RefreshTokens struct {
	tokens   TokenService
	store    RefreshTokenStore
	users    UserStore
	activity ActivitySink
	metrics  Metrics
	logger   Logger
	now      func() time.Time
}

// NewRefreshTokens creates the rotation policy over the repository stores.
func NewRefreshTokens(tokens TokenService, repo RepositoryManager) *RefreshTokens {
	return NewRefreshTokensWithStores(tokens, repo.RefreshTokens(), repo.Users())
}

// NewRefreshTokensWithStores creates the rotation policy over explicit stores.
func NewRefreshTokensWithStores(tokens TokenService, store RefreshTokenStore, users UserStore) *RefreshTokens {
	return &RefreshTokens{
		tokens:   tokens,
		store:    store,
		users:    users,
		activity: noopActivitySink{},
		metrics:  noopMetrics{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit token events.
func (r *RefreshTokens) WithActivitySink(sink ActivitySink) *RefreshTokens {
	r.activity = normalizeActivitySink(sink)
	return r
}

// WithLogger overrides the logger.
func (r *RefreshTokens) WithLogger(logger Logger) *RefreshTokens {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithMetrics sets the metrics recorder.
func (r *RefreshTokens) WithMetrics(m Metrics) *RefreshTokens {
	r.metrics = metricsOrNoop(m)
	return r
}

// IssueOrRotate stores token as the user's only refresh token, overwriting
// the existing row if there is one.
func (r *RefreshTokens) IssueOrRotate(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	return r.store.Upsert(ctx, userID, token, expiresAt)
}

// IssuePair mints an access/refresh pair for user and rotates the store.
func (r *RefreshTokens) IssuePair(ctx context.Context, user *User) (*TokenPair, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, goerrors.New("cannot issue tokens without a user", goerrors.CategoryInternal)
	}

	pair, expiresAt, err := r.mint(user)
	if err != nil {
		return nil, err
	}

	if err := r.IssueOrRotate(ctx, user.ID, pair.RefreshToken, expiresAt); err != nil {
		return nil, err
	}

	return pair, nil
}

func (r *RefreshTokens) mint(user *User) (*TokenPair, time.Time, error) {
	access, err := r.tokens.IssueAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, time.Time{}, err
	}

	refresh, err := r.tokens.IssueRefreshToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, time.Time{}, err
	}

	expiresAt, err := r.tokens.ExtractExpiry(refresh)
	if err != nil {
		expiresAt = r.now().Add(r.tokens.RefreshTokenTTL())
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, expiresAt, nil
}

// Reissue exchanges a refresh token for a new pair. The presented token
// must be the one currently stored for its user. The stored row is swapped
// conditionally so that of two concurrent reissues only one succeeds.
func (r *RefreshTokens) Reissue(ctx context.Context, presented string) (*TokenPair, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during token reissue")
	default:
	}

	pair, err := r.reissue(ctx, presented)
	r.metrics.RecordReissue(resultOf(err))
	return pair, err
}

func (r *RefreshTokens) reissue(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := r.tokens.VerifyRefreshToken(presented)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, WithSource(ErrInvalidOrExpiredToken, err, map[string]any{"reason": "subject"})
	}

	stored, err := r.store.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !constantTimeEqual(stored.Token, presented) {
		r.logger.Warn("refresh token mismatch, possible replay", "user_id", userID.String())
		RecordActivity(ctx, r.activity, r.logger, ActivityEvent{
			EventType: ActivityEventTokenReplay,
			UserID:    userID.String(),
		})
		return nil, WithSource(ErrInvalidRefreshToken, nil, map[string]any{"user_id": userID.String()})
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsDeleted() {
		return nil, WithSource(ErrUserNotFound, nil, map[string]any{"user_id": userID.String()})
	}

	pair, expiresAt, err := r.mint(user)
	if err != nil {
		return nil, err
	}

	swapped, err := r.store.Swap(ctx, userID, presented, pair.RefreshToken, expiresAt)
	if err != nil {
		return nil, err
	}
	if !swapped {
		r.logger.Warn("refresh token rotated concurrently", "user_id", userID.String())
		return nil, WithSource(ErrInvalidRefreshToken, nil, map[string]any{"user_id": userID.String()})
	}

	RecordActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventTokenReissued,
		UserID:    userID.String(),
	})

	return pair, nil
}

// Logout deletes the stored token only if it matches presented. A stale
// token leaves a concurrently issued one untouched.
func (r *RefreshTokens) Logout(ctx context.Context, userID uuid.UUID, presented string) error {
	deleted, err := r.store.DeleteMatching(ctx, userID, presented)
	if err != nil {
		return err
	}

	if !deleted {
		r.logger.Debug("logout with stale refresh token", "user_id", userID.String())
		return nil
	}

	RecordActivity(ctx, r.activity, r.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		UserID:    userID.String(),
	})
	return nil
}

// PurgeExpired removes refresh tokens past their expiry.
func (r *RefreshTokens) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.store.DeleteExpired(ctx, now)
}
