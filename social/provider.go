package social

import "context"

// Identity is the provider independent result of verifying a social token.
type Identity struct {
	Provider    ProviderName `json:"provider"`
	Issuer      string       `json:"issuer"`
	Audience    []string     `json:"audience,omitempty"`
	Subject     string       `json:"subject"`
	Email       string       `json:"email,omitempty"`
	DisplayName string       `json:"display_name,omitempty"`
}

// Verifier turns a token issued by a provider into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*Identity, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}
