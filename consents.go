package auth

import (
	"context"
	"time"
)

// Consents maps consent codes to the user's decision.
type Consents map[ConsentCode]bool

// RequiredConsents must all be agreed to at signup.
var RequiredConsents = []ConsentCode{ConsentTerms, ConsentPrivacy, ConsentLocation}

// OptionalConsents are recorded only when agreed to.
var OptionalConsents = []ConsentCode{ConsentMarketing}

// ConsentPolicy checks signup consents and builds the records to persist.
type ConsentPolicy struct {
	store ConsentStore
	now   func() time.Time
}

// NewConsentPolicy creates the policy over store.
func NewConsentPolicy(store ConsentStore) *ConsentPolicy {
	return &ConsentPolicy{store: store, now: time.Now}
}

// CheckRequired fails unless every required consent is true.
func (p *ConsentPolicy) CheckRequired(consents Consents) error {
	for _, code := range RequiredConsents {
		if !consents[code] {
			return WithSource(ErrRequiredConsentNotAgreed, nil, map[string]any{"consent": code})
		}
	}
	return nil
}

// Build validates consents and returns unsaved records. UserID is left for
// the caller to set once the user exists.
func (p *ConsentPolicy) Build(ctx context.Context, consents Consents) ([]*UserConsent, error) {
	if err := p.CheckRequired(consents); err != nil {
		return nil, err
	}

	now := p.now()
	records := make([]*UserConsent, 0, len(RequiredConsents)+len(OptionalConsents))

	for _, code := range RequiredConsents {
		item, err := p.store.FindActiveByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		records = append(records, &UserConsent{ConsentItemID: item.ID, Agreed: true, AgreedAt: now})
	}

	for _, code := range OptionalConsents {
		if !consents[code] {
			continue
		}
		item, err := p.store.FindActiveByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		records = append(records, &UserConsent{ConsentItemID: item.ID, Agreed: true, AgreedAt: now})
	}

	return records, nil
}
