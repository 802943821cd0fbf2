package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultPasswordResetTTL is how long a reset token can be redeemed.
const DefaultPasswordResetTTL = 30 * time.Minute

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset.request" }

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	mailer   EmailSender
	activity ActivitySink
	metrics  Metrics
	logger   Logger
	ttl      time.Duration
	now      func() time.Time
	newToken func() (string, error)
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(repo RepositoryManager, mailer EmailSender) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		mailer:   mailer,
		activity: noopActivitySink{},
		metrics:  noopMetrics{},
		logger:   defLogger{},
		ttl:      DefaultPasswordResetTTL,
		now:      time.Now,
		newToken: NewResetToken,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics sets the metrics recorder.
func (h *InitializePasswordResetHandler) WithMetrics(m Metrics) *InitializePasswordResetHandler {
	h.metrics = metricsOrNoop(m)
	return h
}

// WithTTL overrides the token lifetime.
func (h *InitializePasswordResetHandler) WithTTL(ttl time.Duration) *InitializePasswordResetHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

// WithClock injects the time source.
func (h *InitializePasswordResetHandler) WithClock(now func() time.Time) *InitializePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		err := h.execute(ctx, event)
		h.metrics.RecordPasswordReset("request", resultOf(err))
		return err
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	email := normalizeEmail(event.Email)
	if email == "" {
		return WithSource(ErrInvalidInput, nil, map[string]any{"email": "cannot be blank"})
	}

	user, err := h.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeUserNotFound) {
			// same outcome as a known email
			h.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return Internal(err, "failed to retrieve user for password reset")
	}

	token, err := h.newToken()
	if err != nil {
		return Internal(err, "failed to generate password reset token")
	}

	txCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := h.now()
	reset := &PasswordResetToken{
		UserID:    user.ID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(h.ttl),
	}

	err = h.repo.RunInTx(txCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.Users().LockTx(ctx, tx, user.ID); err != nil {
			return err
		}

		superseded, err := h.repo.PasswordResets().InvalidateActiveTx(ctx, tx, user.ID, now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			h.logger.Debug("superseded password reset tokens", "user_id", user.ID.String(), "count", superseded)
		}

		return h.repo.PasswordResets().CreateTx(ctx, tx, reset)
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if h.mailer != nil {
		if err := h.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
			h.logger.Warn("password reset email delivery failed", "user_id", user.ID.String(), "error", err)
		}
	}

	RecordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"password_reset_id": reset.ID.String(),
		},
		OccurredAt: now,
	})

	return nil
}

// NewResetToken returns 32 random bytes, base64url encoded.
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString(), nil
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
