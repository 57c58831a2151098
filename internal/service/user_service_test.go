package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchdog/internal/util"
	"watchdog/pkg/config"
	"watchdog/pkg/rbac"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})

	id, err := f.users.Register(ctx, f.admin, "carol", " Carol@Example.com ", "pa55word", rbac.RoleUser)
	require.NoError(t, err)

	u, err := f.users.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.NotEqual(t, "pa55word", u.PasswordHash)

	token, who, err := f.users.Authenticate(ctx, "CAROL@example.com", "pa55word")
	require.NoError(t, err)
	assert.Equal(t, id, who.ID)

	claims, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, rbac.RoleUser, claims.Role)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})

	_, err := f.users.Register(ctx, f.member, "dave", "dave@example.com", "pw", rbac.RoleUser)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.users.Register(ctx, f.admin, "", "dave@example.com", "pw", rbac.RoleUser)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.users.Register(ctx, f.admin, "dave", "dave@example.com", "pw", rbac.Role("root"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.users.Register(ctx, f.admin, "alice2", "ALICE@example.com", "pw", rbac.RoleUser)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: email already registered", PublicMessage(err))
	_, err = f.users.Register(ctx, f.admin, "dave", "dave@example.com", strings.Repeat("p", 73), rbac.RoleUser)
	assert.ErrorIs(t, err, ErrValidation)

	users, err := f.users.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestAuthenticateFailuresShareMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	_, err := f.users.Register(ctx, f.admin, "carol", "carol@example.com", "pa55word", rbac.RoleUser)
	require.NoError(t, err)

	_, _, wrongPassword := f.users.Authenticate(ctx, "carol@example.com", "nope")
	_, _, unknownEmail := f.users.Authenticate(ctx, "nobody@example.com", "pa55word")

	for _, err := range []error{wrongPassword, unknownEmail} {
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, "invalid email or password", PublicMessage(err))
	}
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	svc := NewUserService(stores, rbac.NewGuard(), config.JWTConfig{Secret: "s", TTL: time.Hour}, zap.NewNop())

	id, err := svc.Bootstrap(ctx, "root", "root@example.com", "pw")
	require.NoError(t, err)
	u, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleSuperAdmin, u.Role)

	_, err = svc.Bootstrap(ctx, "again", "again@example.com", "pw")
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrAlreadyBootstrapped)
}
