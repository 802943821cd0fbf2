package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" example:"Zk3J0m1...xQ" doc:"Password reset token"`
	Password string `json:"password" example:"s3cret!pass" doc:"New password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	hasher   PasswordAuthenticator
	activity ActivitySink
	metrics  Metrics
	logger   Logger
	now      func() time.Time
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		hasher:   BcryptHasher{},
		activity: noopActivitySink{},
		metrics:  noopMetrics{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithPasswordHasher replaces the bcrypt hasher.
func (h *FinalizePasswordResetHandler) WithPasswordHasher(hasher PasswordAuthenticator) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics sets the metrics recorder.
func (h *FinalizePasswordResetHandler) WithMetrics(m Metrics) *FinalizePasswordResetHandler {
	h.metrics = metricsOrNoop(m)
	return h
}

// WithClock injects the time source.
func (h *FinalizePasswordResetHandler) WithClock(now func() time.Time) *FinalizePasswordResetHandler {
	if now != nil {
		h.now = now
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		err := h.execute(ctx, event)
		h.metrics.RecordPasswordReset("redeem", resultOf(err))
		return err
	}
}

// Validate checks a token the way Execute does, without consuming it.
func (h *FinalizePasswordResetHandler) Validate(ctx context.Context, token string) error {
	reset, err := h.repo.PasswordResets().FindByTokenTx(ctx, nil, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	return checkRedeemable(reset, h.now())
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	token := strings.TrimSpace(event.Token)
	if token == "" {
		return WithSource(ErrInvalidToken, nil, nil)
	}

	var reset *PasswordResetToken

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		reset, err = h.repo.PasswordResets().FindByTokenTx(ctx, tx, token)
		if err != nil {
			return err
		}

		now := h.now()
		if err := checkRedeemable(reset, now); err != nil {
			return err
		}

		if err := ValidatePassword(event.Password); err != nil {
			return err
		}

		marked, err := h.repo.PasswordResets().MarkUsedTx(ctx, tx, reset.ID, now)
		if err != nil {
			return err
		}
		if !marked {
			return WithSource(ErrTokenAlreadyUsed, nil, map[string]any{"password_reset_id": reset.ID.String()})
		}

		passwordHash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return err
		}

		return h.repo.Users().UpdatePasswordTx(ctx, tx, reset.UserID, passwordHash)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, reset)

	return nil
}

// checkRedeemable checks used before expiry.
func checkRedeemable(reset *PasswordResetToken, now time.Time) error {
	if reset.Used {
		return WithSource(ErrTokenAlreadyUsed, nil, map[string]any{"password_reset_id": reset.ID.String()})
	}
	if reset.IsExpired(now) {
		return WithSource(ErrTokenExpired, nil, map[string]any{"password_reset_id": reset.ID.String()})
	}
	return nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, reset *PasswordResetToken) {
	if reset == nil {
		return
	}

	RecordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		UserID:    reset.UserID.String(),
		Metadata: map[string]any{
			"password_reset_id": reset.ID.String(),
		},
		OccurredAt: h.now(),
	})
}
