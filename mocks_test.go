package auth_test

import (
	"context"
	"sync"
	"testing"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/internal/testdb"
	"github.com/stretchr/testify/mock"
)

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.level == level {
			n++
		}
	}
	return n
}

// MockEmailSender implements auth.EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendPasswordReset(ctx context.Context, email, token string) error {
	args := m.Called(ctx, email, token)
	return args.Error(0)
}

// MockHasher implements auth.PasswordAuthenticator
type MockHasher struct {
	mock.Mock
}

func (m *MockHasher) HashPassword(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockHasher) ComparePasswordAndHash(password, hash string) error {
	args := m.Called(password, hash)
	return args.Error(0)
}

// MockMetrics implements auth.Metrics
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordLogin(method, result string) {
	m.Called(method, result)
}

func (m *MockMetrics) RecordReissue(result string) {
	m.Called(result)
}

func (m *MockMetrics) RecordPasswordReset(stage, result string) {
	m.Called(stage, result)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *activityRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *activityRecorder) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	repo     auth.RepositoryManager
	tokens   *auth.JwtTokenService
	refresh  *auth.RefreshTokens
	auther   *auth.Auther
	activity *activityRecorder
	logger   *captureLogger
}

func newFixture(t *testing.T, opts ...auth.TokenServiceOption) *fixture {
	t.Helper()

	repo := testdb.Manager(t)
	tokens := newTokenService(t, opts...)
	activity := &activityRecorder{}
	logger := &captureLogger{}

	refresh := auth.NewRefreshTokens(tokens, repo).
		WithActivitySink(activity).
		WithLogger(logger)

	auther := auth.NewAuthenticator(repo, refresh, nil).
		WithActivitySink(activity).
		WithLogger(logger)

	return &fixture{
		repo:     repo,
		tokens:   tokens,
		refresh:  refresh,
		auther:   auther,
		activity: activity,
		logger:   logger,
	}
}

func allConsents() auth.Consents {
	return auth.Consents{
		auth.ConsentTerms:    true,
		auth.ConsentPrivacy:  true,
		auth.ConsentLocation: true,
	}
}

// MockActivitySink implements auth.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event auth.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
