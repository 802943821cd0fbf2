package social

import (
	"fmt"
	"strings"
)

// ProviderName identifies a supported identity provider.
type ProviderName string

const (
	ProviderKakao  ProviderName = "KAKAO"
	ProviderGoogle ProviderName = "GOOGLE"
	ProviderNaver  ProviderName = "NAVER"
)

var knownProviders = map[ProviderName]struct{}{
	ProviderKakao:  {},
	ProviderGoogle: {},
	ProviderNaver:  {},
}

// ParseProvider resolves a provider name case insensitively.
func ParseProvider(s string) (ProviderName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", wrapProviderError(ErrProviderRequired, "", "", nil)
	}

	name := ProviderName(strings.ToUpper(s))
	if _, ok := knownProviders[name]; !ok {
		return "", wrapProviderError(ErrInvalidProvider, "", "", nil).
			WithMetadata(map[string]any{"provider": s})
	}
	return name, nil
}

// RegistryEntry pairs a provider with its verifier.
type RegistryEntry struct {
	Provider ProviderName
	Verifier Verifier
}

// Registry is an immutable provider to verifier table.
type Registry struct {
	verifiers map[ProviderName]Verifier
}

// NewRegistry builds the table from entries. Unknown providers, nil
// verifiers and duplicates are errors.
func NewRegistry(entries ...RegistryEntry) (*Registry, error) {
	verifiers := make(map[ProviderName]Verifier, len(entries))
	for _, e := range entries {
		if _, ok := knownProviders[e.Provider]; !ok {
			return nil, fmt.Errorf("social registry: unknown provider %q", e.Provider)
		}
		if e.Verifier == nil {
			return nil, fmt.Errorf("social registry: nil verifier for %s", e.Provider)
		}
		if _, dup := verifiers[e.Provider]; dup {
			return nil, fmt.Errorf("social registry: duplicate entry for %s", e.Provider)
		}
		verifiers[e.Provider] = e.Verifier
	}
	return &Registry{verifiers: verifiers}, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(entries ...RegistryEntry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Verifier returns the verifier configured for name.
func (r *Registry) Verifier(name ProviderName) (Verifier, error) {
	if r != nil {
		if v, ok := r.verifiers[name]; ok {
			return v, nil
		}
	}
	return nil, wrapProviderError(ErrInvalidProvider, name, "", nil)
}

// Providers lists the configured providers.
func (r *Registry) Providers() []ProviderName {
	out := make([]ProviderName, 0, len(r.verifiers))
	for _, name := range []ProviderName{ProviderKakao, ProviderGoogle, ProviderNaver} {
		if _, ok := r.verifiers[name]; ok {
			out = append(out, name)
		}
	}
	return out
}
