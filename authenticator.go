package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SignupRequest is an email/password signup.
type SignupRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Nickname string   `json:"nickname"`
	Consents Consents `json:"consents"`
}

// AccountSpec describes a user to create.
type AccountSpec struct {
	Email        string
	PasswordHash string
	Nickname     string
	JoinType     JoinType
	Consents     Consents
}

// NicknameReason explains why a nickname is unavailable.
type NicknameReason = string

const (
	NicknameForbiddenWord NicknameReason = "FORBIDDEN_WORD"
	NicknameDuplicated    NicknameReason = "DUPLICATED"
)

// NicknameAvailability is the result of CheckNickname.
type NicknameAvailability struct {
	Available bool           `json:"available"`
	Reason    NicknameReason `json:"reason,omitempty"`
}

// JoinMethod is the result of CheckJoinMethod.
type JoinMethod struct {
	Registered bool     `json:"registered"`
	JoinType   JoinType `json:"join_type,omitempty"`
}

// Auther handles email/password authentication and account creation.
type Auther struct {
	repo     RepositoryManager
	refresh  *RefreshTokens
	words    *ForbiddenWords
	consents *ConsentPolicy
	hasher   PasswordAuthenticator
	activity ActivitySink
	metrics  Metrics
	logger   Logger
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(repo RepositoryManager, refresh *RefreshTokens, words *ForbiddenWords) *Auther {
	if words == nil {
		words = NewForbiddenWords(repo.ForbiddenWords(), DefaultForbiddenWordsTTL)
	}
	return &Auther{
		repo:     repo,
		refresh:  refresh,
		words:    words,
		consents: NewConsentPolicy(repo.Consents()),
		hasher:   BcryptHasher{},
		activity: noopActivitySink{},
		metrics:  noopMetrics{},
		logger:   defLogger{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithPasswordHasher replaces the bcrypt hasher.
func (s *Auther) WithPasswordHasher(h PasswordAuthenticator) *Auther {
	if h != nil {
		s.hasher = h
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithMetrics sets the metrics recorder.
func (s *Auther) WithMetrics(m Metrics) *Auther {
	s.metrics = metricsOrNoop(m)
	return s
}

// RefreshTokens returns the rotation policy used to issue pairs.
func (s *Auther) RefreshTokens() *RefreshTokens {
	return s.refresh
}

// ConsentPolicy returns the signup consent policy.
func (s *Auther) ConsentPolicy() *ConsentPolicy {
	return s.consents
}

// Login verifies email and password. Unknown email and wrong password fail
// with the same ErrInvalidCredentials.
func (s *Auther) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	pair, userID, err := s.login(ctx, email, password)
	s.metrics.RecordLogin("email", resultOf(err))

	if err != nil {
		s.logger.Debug("login failed", "error", err)
		RecordActivity(ctx, s.activity, s.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{Type: "unknown"},
			UserID:    userID,
			Metadata:  map[string]any{"method": JoinTypeEmail},
		})
		return nil, err
	}

	RecordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    userID,
		Metadata:  map[string]any{"method": JoinTypeEmail},
	})
	return pair, nil
}

func (s *Auther) login(ctx context.Context, email, password string) (*TokenPair, string, error) {
	user, err := s.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeUserNotFound) {
			_ = s.hasher.ComparePasswordAndHash(password, "")
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", Internal(err, "failed to load user for login")
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if HasTextCode(err, TextCodeInvalidCredentials) {
			return nil, user.ID.String(), ErrInvalidCredentials
		}
		return nil, user.ID.String(), err
	}

	pair, err := s.refresh.IssuePair(ctx, user)
	if err != nil {
		return nil, user.ID.String(), err
	}
	return pair, user.ID.String(), nil
}

// Signup creates an email account and logs it in.
func (s *Auther) Signup(ctx context.Context, req SignupRequest) (*TokenPair, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.CreateAccount(ctx, AccountSpec{
		Email:        req.Email,
		PasswordHash: hash,
		Nickname:     req.Nickname,
		JoinType:     JoinTypeEmail,
		Consents:     req.Consents,
	}, nil)
	if err != nil {
		return nil, err
	}

	RecordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventSignup,
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"join_type": JoinTypeEmail},
	})

	return s.refresh.IssuePair(ctx, user)
}

// CreateAccount runs the signup checks in order (email, forbidden word,
// nickname, consents) and creates the user with its consent records in one
// transaction. afterCreate runs inside the same transaction.
func (s *Auther) CreateAccount(ctx context.Context, spec AccountSpec, afterCreate func(ctx context.Context, tx bun.Tx, user *User) error) (*User, error) {
	spec.Email = normalizeEmail(spec.Email)
	spec.Nickname = strings.TrimSpace(spec.Nickname)

	if err := ValidateNickname(spec.Nickname); err != nil {
		return nil, err
	}

	exists, err := s.repo.Users().ExistsByEmail(ctx, spec.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, WithSource(ErrEmailAlreadyExists, nil, nil)
	}

	forbidden, err := s.words.Contains(ctx, spec.Nickname)
	if err != nil {
		return nil, Internal(err, "failed to check forbidden words")
	}
	if forbidden {
		return nil, WithSource(ErrForbiddenWord, nil, map[string]any{"nickname": spec.Nickname})
	}

	exists, err = s.repo.Users().ExistsByNickname(ctx, spec.Nickname)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, WithSource(ErrNicknameAlreadyExists, nil, map[string]any{"nickname": spec.Nickname})
	}

	records, err := s.consents.Build(ctx, spec.Consents)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:           uuid.New(),
		Email:        spec.Email,
		PasswordHash: spec.PasswordHash,
		Nickname:     spec.Nickname,
		JoinType:     spec.JoinType,
		Role:         RoleUser,
		Status:       UserStatusActive,
	}

	txCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = s.repo.RunInTx(txCtx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return err
		}

		for _, r := range records {
			r.UserID = user.ID
		}
		if err := s.repo.Consents().SaveTx(ctx, tx, records); err != nil {
			return err
		}

		if afterCreate != nil {
			return afterCreate(ctx, tx, user)
		}
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create account")
	}

	return user, nil
}

// IsEmailAvailable reports whether no account uses email.
func (s *Auther) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	if err := ValidateEmail(email); err != nil {
		return false, err
	}
	exists, err := s.repo.Users().ExistsByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// CheckNickname checks forbidden words before duplicates.
func (s *Auther) CheckNickname(ctx context.Context, nickname string) (NicknameAvailability, error) {
	nickname = strings.TrimSpace(nickname)

	forbidden, err := s.words.Contains(ctx, nickname)
	if err != nil {
		return NicknameAvailability{}, Internal(err, "failed to check forbidden words")
	}
	if forbidden {
		return NicknameAvailability{Available: false, Reason: NicknameForbiddenWord}, nil
	}

	exists, err := s.repo.Users().ExistsByNickname(ctx, nickname)
	if err != nil {
		return NicknameAvailability{}, err
	}
	if exists {
		return NicknameAvailability{Available: false, Reason: NicknameDuplicated}, nil
	}

	return NicknameAvailability{Available: true}, nil
}

// CheckJoinMethod reports how email registered. Deleted accounts read as
// not registered.
func (s *Auther) CheckJoinMethod(ctx context.Context, email string) (JoinMethod, error) {
	user, err := s.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeUserNotFound) {
			return JoinMethod{Registered: false}, nil
		}
		return JoinMethod{}, err
	}
	if user.IsDeleted() {
		return JoinMethod{Registered: false}, nil
	}
	return JoinMethod{Registered: true, JoinType: user.JoinType}, nil
}

// Logout removes the user's refresh token if it matches.
func (s *Auther) Logout(ctx context.Context, userID uuid.UUID, refreshToken string) error {
	return s.refresh.Logout(ctx, userID, refreshToken)
}
