package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/epik-app/go-auth"
	"github.com/epik-app/go-auth/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRefreshTokens_Rotation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "rotate@example.com", "rotator", "passw0rd!")

	pair1, err := f.refresh.IssuePair(ctx, user)
	require.NoError(t, err)

	stored, err := f.repo.RefreshTokens().FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, pair1.RefreshToken, stored.Token)

	pair2, err := f.refresh.Reissue(ctx, pair1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair1.RefreshToken, pair2.RefreshToken)

	stored, err = f.repo.RefreshTokens().FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, pair2.RefreshToken, stored.Token, "the new token is persisted, not the presented one")

	claims, err := f.tokens.VerifyAccessToken(pair2.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, auth.RoleUser, claims.Role())

	t.Run("replaying the old token fails", func(t *testing.T) {
		_, err := f.refresh.Reissue(ctx, pair1.RefreshToken)
		assert.Equal(t, auth.TextCodeInvalidRefreshToken, auth.TextCodeOf(err))
		assert.Contains(t, f.activity.types(), auth.ActivityEventTokenReplay)
	})

	t.Run("the current token still works", func(t *testing.T) {
		pair3, err := f.refresh.Reissue(ctx, pair2.RefreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, pair3.AccessToken)
	})
}

func TestRefreshTokens_SingleRowPerUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "single@example.com", "single", "passw0rd!")

	for i := 0; i < 3; i++ {
		_, err := f.refresh.IssuePair(ctx, user)
		require.NoError(t, err)
	}

	n, err := f.repo.DB().NewSelect().
		Model((*auth.RefreshToken)(nil)).
		Where("user_id = ?", user.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRefreshTokens_ReissueFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "fail@example.com", "failer", "passw0rd!")

	t.Run("access token is rejected", func(t *testing.T) {
		access, err := f.tokens.IssueAccessToken(user.ID.String(), auth.RoleUser)
		require.NoError(t, err)
		_, err = f.refresh.Reissue(ctx, access)
		assert.Equal(t, auth.TextCodeInvalidOrExpiredToken, auth.TextCodeOf(err))
	})

	t.Run("no stored row", func(t *testing.T) {
		token, err := f.tokens.IssueRefreshToken(user.ID.String(), auth.RoleUser)
		require.NoError(t, err)
		_, err = f.refresh.Reissue(ctx, token)
		assert.Equal(t, auth.TextCodeRefreshTokenNotFound, auth.TextCodeOf(err))
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := f.refresh.Reissue(ctx, "not-a-token")
		assert.Equal(t, auth.TextCodeMalformedToken, auth.TextCodeOf(err))
	})

	t.Run("non uuid subject", func(t *testing.T) {
		token, err := f.tokens.IssueRefreshToken("42", auth.RoleUser)
		require.NoError(t, err)
		_, err = f.refresh.Reissue(ctx, token)
		assert.Equal(t, auth.TextCodeInvalidOrExpiredToken, auth.TextCodeOf(err))
	})

	t.Run("deleted user", func(t *testing.T) {
		gone := testdb.CreateUser(t, f.repo, "gone@example.com", "gone", "passw0rd!")
		pair, err := f.refresh.IssuePair(ctx, gone)
		require.NoError(t, err)

		_, err = f.repo.DB().NewDelete().Model(gone).WherePK().Exec(ctx)
		require.NoError(t, err)

		_, err = f.refresh.Reissue(ctx, pair.RefreshToken)
		assert.Equal(t, auth.TextCodeUserNotFound, auth.TextCodeOf(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.refresh.Reissue(cctx, "a.b.c")
		assert.Error(t, err)
	})
}

func TestRefreshTokens_ConcurrentReissue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "race@example.com", "racer", "passw0rd!")

	pair, err := f.refresh.IssuePair(ctx, user)
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.refresh.Reissue(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, auth.TextCodeOf(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, code := range failures {
		assert.Equal(t, auth.TextCodeInvalidRefreshToken, code)
	}
}

func TestRefreshTokens_Logout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "logout@example.com", "leaver", "passw0rd!")

	old, err := f.refresh.IssuePair(ctx, user)
	require.NoError(t, err)
	current, err := f.refresh.IssuePair(ctx, user)
	require.NoError(t, err)

	require.NoError(t, f.refresh.Logout(ctx, user.ID, old.RefreshToken))

	stored, err := f.repo.RefreshTokens().FindByUserID(ctx, user.ID)
	require.NoError(t, err, "a stale logout leaves the current token")
	assert.Equal(t, current.RefreshToken, stored.Token)

	require.NoError(t, f.auther.Logout(ctx, user.ID, current.RefreshToken))

	_, err = f.repo.RefreshTokens().FindByUserID(ctx, user.ID)
	assert.Equal(t, auth.TextCodeRefreshTokenNotFound, auth.TextCodeOf(err))
	assert.Contains(t, f.activity.types(), auth.ActivityEventLogout)

	_, err = f.refresh.Reissue(ctx, current.RefreshToken)
	assert.Equal(t, auth.TextCodeRefreshTokenNotFound, auth.TextCodeOf(err))
}

func TestRefreshTokens_Metrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "metrics@example.com", "counted", "passw0rd!")

	m := new(MockMetrics)
	m.On("RecordReissue", auth.ResultSuccess).Once()
	m.On("RecordReissue", auth.ResultFailure).Once()
	f.refresh.WithMetrics(m)

	pair, err := f.refresh.IssuePair(ctx, user)
	require.NoError(t, err)

	_, err = f.refresh.Reissue(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = f.refresh.Reissue(ctx, pair.RefreshToken)
	require.Error(t, err)

	m.AssertExpectations(t)
	m.AssertNumberOfCalls(t, "RecordReissue", 2)
	m.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything)
}

func TestRefreshTokens_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := testdb.CreateUser(t, f.repo, "purge@example.com", "purger", "passw0rd!")

	require.NoError(t, f.refresh.IssueOrRotate(ctx, user.ID, "opaque", time.Now().Add(-time.Hour)))

	n, err := f.refresh.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
