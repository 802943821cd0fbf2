package social

import (
	"context"
	"strings"

	auth "github.com/epik-app/go-auth"
	"github.com/uptrace/bun"
)

// LoginResult is either a token pair for a linked user or a register token
// to complete signup with.
type LoginResult struct {
	NeedsSignup   bool   `json:"needs_signup"`
	AccessToken   string `json:"access_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	RegisterToken string `json:"register_token,omitempty"`
	Email         string `json:"email,omitempty"`
}

// SocialSignupRequest completes a social signup.
type SocialSignupRequest struct {
	RegisterToken string        `json:"register_token"`
	Nickname      string        `json:"nickname"`
	Email         string        `json:"email,omitempty"`
	Consents      auth.Consents `json:"consents"`
}

// Resolver maps verified provider identities to local accounts.
type Resolver struct {
	registry *Registry
	tokens   auth.TokenService
	auther   *auth.Auther
	users    auth.UserStore
	links    LinkStore
	activity auth.ActivitySink
	metrics  Metrics
	logger   auth.Logger
}

// NewResolver creates the resolver. Token pairs are issued through the
// authenticator's refresh token policy.
func NewResolver(registry *Registry, tokens auth.TokenService, auther *auth.Auther, users auth.UserStore, links LinkStore) *Resolver {
	return &Resolver{
		registry: registry,
		tokens:   tokens,
		auther:   auther,
		users:    users,
		links:    links,
		activity: auth.ActivitySinkFunc(nil),
		metrics:  noopMetrics{},
		logger:   auth.DefaultLogger(),
	}
}

func (r *Resolver) WithLogger(logger auth.Logger) *Resolver {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// WithActivitySink configures an ActivitySink for emitting social events.
func (r *Resolver) WithActivitySink(sink auth.ActivitySink) *Resolver {
	if sink != nil {
		r.activity = sink
	}
	return r
}

// WithMetrics sets the metrics recorder.
func (r *Resolver) WithMetrics(m Metrics) *Resolver {
	r.metrics = metricsOrNoop(m)
	return r
}

// HandleSocialLogin verifies token with the provider and logs in the linked
// user. Unlinked identities get a register token instead.
func (r *Resolver) HandleSocialLogin(ctx context.Context, provider, token string) (*LoginResult, error) {
	name, err := ParseProvider(provider)
	if err != nil {
		return nil, err
	}

	verifier, err := r.registry.Verifier(name)
	if err != nil {
		return nil, err
	}

	identity, err := verifier.Verify(ctx, token)
	if err != nil {
		r.metrics.RecordVerification(string(name), auth.ResultFailure)
		r.logger.Debug("social token verification failed", "provider", string(name), "error", err)
		return nil, err
	}
	r.metrics.RecordVerification(string(name), auth.ResultSuccess)

	pair, linked, err := r.loginLinked(ctx, name, identity.Subject)
	if err != nil {
		return nil, err
	}
	if linked {
		return &LoginResult{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
	}

	registerToken, err := r.tokens.IssueRegisterToken(string(name), identity.Subject, identity.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		NeedsSignup:   true,
		RegisterToken: registerToken,
		Email:         identity.Email,
	}, nil
}

// CompleteSocialSignup creates the account and link described by a register
// token. A subject that is already linked logs in the linked user instead.
func (r *Resolver) CompleteSocialSignup(ctx context.Context, req SocialSignupRequest) (*auth.TokenPair, error) {
	claims, err := r.tokens.VerifyRegisterToken(req.RegisterToken)
	if err != nil {
		return nil, err
	}

	name, err := ParseProvider(claims.Provider)
	if err != nil {
		return nil, err
	}

	if pair, linked, err := r.loginLinked(ctx, name, claims.SocialID); err != nil || linked {
		return pair, err
	}

	email := strings.TrimSpace(claims.Email)
	if email == "" {
		email = strings.TrimSpace(req.Email)
		if email == "" {
			return nil, wrapProviderError(ErrEmailRequired, name, "signup", nil)
		}
		if err := auth.ValidateEmail(email); err != nil {
			return nil, err
		}
	}

	if err := r.auther.ConsentPolicy().CheckRequired(req.Consents); err != nil {
		return nil, err
	}

	user, err := r.auther.CreateAccount(ctx, auth.AccountSpec{
		Email:    email,
		Nickname: req.Nickname,
		JoinType: auth.JoinTypeSocial,
		Consents: req.Consents,
	}, func(ctx context.Context, tx bun.Tx, user *auth.User) error {
		return r.links.CreateTx(ctx, tx, &SocialLoginLink{
			UserID:   user.ID,
			Provider: name,
			SocialID: claims.SocialID,
			Email:    user.Email,
		})
	})
	if err != nil {
		if auth.HasTextCode(err, TextCodeAlreadyLinked) || auth.HasTextCode(err, auth.TextCodeEmailAlreadyExists) {
			// a concurrent signup for the same subject may have won
			if pair, linked, lerr := r.loginLinked(ctx, name, claims.SocialID); lerr == nil && linked {
				return pair, nil
			}
		}
		return nil, err
	}

	pair, err := r.auther.RefreshTokens().IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	auth.RecordActivity(ctx, r.activity, r.logger, auth.ActivityEvent{
		EventType: auth.ActivityEventSocialSignup,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"provider": string(name)},
	})

	return pair, nil
}

func (r *Resolver) loginLinked(ctx context.Context, name ProviderName, socialID string) (*auth.TokenPair, bool, error) {
	link, err := r.links.FindByProviderAndSocialID(ctx, name, socialID)
	if err != nil {
		return nil, false, err
	}
	if link == nil {
		return nil, false, nil
	}

	user, err := r.users.FindByID(ctx, link.UserID)
	if err != nil {
		return nil, true, err
	}
	if user.IsDeleted() {
		return nil, true, auth.WithSource(auth.ErrUserNotFound, nil, map[string]any{"user_id": user.ID.String()})
	}

	pair, err := r.auther.RefreshTokens().IssuePair(ctx, user)
	if err != nil {
		return nil, true, err
	}

	auth.RecordActivity(ctx, r.activity, r.logger, auth.ActivityEvent{
		EventType: auth.ActivityEventSocialLogin,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"provider": string(name)},
	})

	return pair, true, nil
}
