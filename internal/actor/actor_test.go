package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchdog/pkg/rbac"
)

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	want := Actor{ID: 3, Role: rbac.RoleUser, Username: "dana"}
	got, err := FromContext(WithActor(context.Background(), want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, got.IsSuperAdmin())
	assert.Equal(t, rbac.Subject{UserID: 3, Role: rbac.RoleUser}, got.Subject())
}

func TestFromContext_ZeroIDIsUnauthenticated(t *testing.T) {
	_, err := FromContext(WithActor(context.Background(), Actor{Role: rbac.RoleSuperAdmin}))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
