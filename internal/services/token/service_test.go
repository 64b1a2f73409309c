package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/config"
	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/repository"
	"github.com/authplane/authplane/internal/rolecache"
)

var jwtConfig = config.JWTConfig{
	AccessSecret:  "access-secret-for-tests",
	AccessTTL:     time.Hour,
	RefreshSecret: "refresh-secret-for-tests",
	RefreshTTL:    24 * time.Hour,
}

type fixture struct {
	svc   *Service
	users repository.UserRepository
	rules repository.RuleRepository
	cache rolecache.Cache
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, m := range []any{(*models.User)(nil), (*models.AuthToken)(nil), (*models.Rule)(nil)} {
		_, err := db.NewCreateTable().Model(m).Exec(ctx)
		require.NoError(t, err)
	}

	users := repository.NewBunUserRepository(db)
	tokens := repository.NewBunTokenRepository(db)
	rules := repository.NewBunRuleRepository(db)
	cache, err := rolecache.NewMemoryCache("", 64)
	require.NoError(t, err)

	svc := NewService(users, tokens, rules, cache, NewSigner(jwtConfig), jwtConfig.AccessTTL)
	return &fixture{svc: svc, users: users, rules: rules, cache: cache}
}

func (f *fixture) createUser(t *testing.T, username, password, domain string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	email := username + "@example.com"
	user := &models.User{
		Username:     username,
		Email:        &email,
		PasswordHash: string(hash),
		Domain:       domain,
		Status:       models.UserStatusEnabled,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func TestPasswordLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.createUser(t, "alice", "pwd", "acme")

	pair, events, err := f.svc.PasswordLogin(ctx, "alice", "pwd", RequestContext{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, user.UID(), pair.UserID)
	assert.Equal(t, "acme", pair.Domain)

	require.Len(t, events, 2)

	claims, err := f.svc.signer.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.UID(), claims.UID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "acme", claims.Domain)

	// Tokens use distinct secrets.
	_, err = f.svc.signer.VerifyAccess(pair.RefreshToken)
	require.Error(t, err)
}

func TestPasswordLoginByEmail(t *testing.T) {
	f := setup(t)
	f.createUser(t, "alice", "pwd", "")

	pair, _, err := f.svc.PasswordLogin(context.Background(), "alice@example.com", "pwd", RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, "alice", pair.Username)
}

func TestPasswordLoginUnknownUser(t *testing.T) {
	f := setup(t)

	_, _, err := f.svc.PasswordLogin(context.Background(), "nobody", "pwd", RequestContext{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPasswordLoginWrongPassword(t *testing.T) {
	f := setup(t)
	f.createUser(t, "alice", "pwd", "")

	_, _, err := f.svc.PasswordLogin(context.Background(), "alice", "wrong", RequestContext{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestPasswordLoginDisabledAccount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("pwd"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(ctx, &models.User{
		Username:     "mallory",
		PasswordHash: string(hash),
		Status:       models.UserStatusDisabled,
	}))

	_, _, err = f.svc.PasswordLogin(ctx, "mallory", "pwd", RequestContext{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestLoginPrimesRoleCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.createUser(t, "alice", "pwd", "acme")

	require.NoError(t, f.rules.Create(ctx, &models.Rule{Ptype: "g", V0: user.UID(), V1: "editor", V2: "acme"}))
	require.NoError(t, f.rules.Create(ctx, &models.Rule{Ptype: "g", V0: "editor", V1: "admin", V2: "acme"}))

	_, _, err := f.svc.PasswordLogin(ctx, "alice", "pwd", RequestContext{})
	require.NoError(t, err)

	roles, ok, err := f.cache.Get(ctx, user.UID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"admin", "editor"}, roles)
}

func TestRefreshSingleUse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.createUser(t, "alice", "pwd", "")

	pair, _, err := f.svc.PasswordLogin(ctx, "alice", "pwd", RequestContext{})
	require.NoError(t, err)

	next, events, err := f.svc.Refresh(ctx, pair.RefreshToken, RequestContext{})
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	require.Len(t, events, 2)

	// Second use of the retired token.
	_, _, err = f.svc.Refresh(ctx, pair.RefreshToken, RequestContext{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// The replacement works.
	_, _, err = f.svc.Refresh(ctx, next.RefreshToken, RequestContext{})
	require.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
	f := setup(t)

	_, _, err := f.svc.Refresh(context.Background(), "never-issued", RequestContext{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRefreshConcurrentSingleWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.createUser(t, "alice", "pwd", "")

	pair, _, err := f.svc.PasswordLogin(ctx, "alice", "pwd", RequestContext{})
	require.NoError(t, err)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = f.svc.Refresh(ctx, pair.RefreshToken, RequestContext{})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent refresh succeeds")
}

func TestSignOutIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.createUser(t, "alice", "pwd", "")

	pair, _, err := f.svc.PasswordLogin(ctx, "alice", "pwd", RequestContext{})
	require.NoError(t, err)

	events, err := f.svc.SignOut(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// Cache entry cleared.
	_, ok, err := f.cache.Get(ctx, user.UID())
	require.NoError(t, err)
	assert.False(t, ok)

	// Signed-out token no longer refreshes.
	_, _, err = f.svc.Refresh(ctx, pair.RefreshToken, RequestContext{})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Second sign-out and unknown tokens are silent successes.
	_, err = f.svc.SignOut(ctx, pair.RefreshToken)
	require.NoError(t, err)
	events, err = f.svc.SignOut(ctx, "never-issued")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestVerifyEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.createUser(t, "alice", "pwd", "")

	event, err := f.svc.VerifyEmail(ctx, user.ID, "admin:1")
	require.NoError(t, err)
	assert.NotEmpty(t, event.Type)

	fetched, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, fetched.EmailVerified)
}

func TestVerifyEmailMissingUser(t *testing.T) {
	f := setup(t)

	_, err := f.svc.VerifyEmail(context.Background(), 999, "admin:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
