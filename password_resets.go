package auth

import (
	"context"
	"time"
)

// DefaultResetRetention is how long used or expired reset tokens are kept.
const DefaultResetRetention = 7 * 24 * time.Hour

// PasswordResets is the password reset token lifecycle: request, validate,
// redeem and purge.
type PasswordResets struct {
	initialize *InitializePasswordResetHandler
	finalize   *FinalizePasswordResetHandler
	store      PasswordResetStore
}

// NewPasswordResets creates the lifecycle from its two command handlers.
func NewPasswordResets(repo RepositoryManager, init *InitializePasswordResetHandler, fin *FinalizePasswordResetHandler) *PasswordResets {
	if init == nil {
		init = NewInitializePasswordResetHandler(repo, nil)
	}
	if fin == nil {
		fin = NewFinalizePasswordResetHandler(repo)
	}
	return &PasswordResets{
		initialize: init,
		finalize:   fin,
		store:      repo.PasswordResets(),
	}
}

// RequestReset issues a new token for email, superseding any unused one.
// Unknown emails succeed without side effects.
func (p *PasswordResets) RequestReset(ctx context.Context, email string) error {
	return p.initialize.Execute(ctx, InitializePasswordResetMessage{Email: email})
}

// Redeem consumes token and sets the user's password.
func (p *PasswordResets) Redeem(ctx context.Context, token, newPassword string) error {
	return p.finalize.Execute(ctx, FinalizePasswordResetMessage{Token: token, Password: newPassword})
}

// ValidateToken reports whether token could be redeemed now.
func (p *PasswordResets) ValidateToken(ctx context.Context, token string) error {
	return p.finalize.Validate(ctx, token)
}

// PurgeExpired deletes tokens that expired or were used before
// now minus the retention window.
func (p *PasswordResets) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return p.store.DeleteStale(ctx, now.Add(-DefaultResetRetention))
}
