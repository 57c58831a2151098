package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_AdminOnlyOperations(t *testing.T) {
	g := NewGuard()
	admin := Subject{UserID: 1, Role: RoleSuperAdmin}
	user := Subject{UserID: 7, Role: RoleUser}

	ops := []Permission{
		PermissionCreateProject,
		PermissionUpdateProject,
		PermissionDeleteProject,
		PermissionAddMember,
		PermissionRemoveMember,
		PermissionRegisterUser,
		PermissionCreateTask,
		PermissionReclassify,
	}
	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			assert.NoError(t, g.Check(admin, op, Target{}))

			err := g.Check(user, op, Target{AssignedUserID: user.UserID})
			require.Error(t, err)
			var denied *PermissionDeniedError
			require.True(t, errors.As(err, &denied))
			assert.Equal(t, op, denied.Permission)
			assert.Equal(t, "requires super admin", denied.Reason)
		})
	}
}

func TestGuard_OwnerScopedOperations(t *testing.T) {
	g := NewGuard()
	assignee := Subject{UserID: 7, Role: RoleUser}
	other := Subject{UserID: 8, Role: RoleUser}
	task := Target{Kind: "task", ID: 3, AssignedUserID: 7}

	for _, op := range []Permission{
		PermissionUpdateTask,
		PermissionDeleteTask,
		PermissionCreateSubtask,
		PermissionUpdateSubtask,
		PermissionDeleteSubtask,
		PermissionPostProgression,
	} {
		t.Run(string(op), func(t *testing.T) {
			assert.NoError(t, g.Check(assignee, op, task))

			err := g.Check(other, op, task)
			var denied *PermissionDeniedError
			require.True(t, errors.As(err, &denied))
			assert.Contains(t, denied.Reason, "task 3")
		})
	}
}

func TestGuard_Unauthenticated(t *testing.T) {
	g := NewGuard()

	tests := []struct {
		name    string
		subject Subject
	}{
		{"zero id", Subject{UserID: 0, Role: RoleSuperAdmin}},
		{"empty role", Subject{UserID: 5}},
		{"unknown role", Subject{UserID: 5, Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(tt.subject, PermissionPostTimeline, Target{})
			var denied *PermissionDeniedError
			require.True(t, errors.As(err, &denied))
			assert.Equal(t, "not authenticated", denied.Reason)
		})
	}
}

func TestGuard_AnyUserMayPostToTimeline(t *testing.T) {
	g := NewGuard()
	assert.NoError(t, g.Check(Subject{UserID: 9, Role: RoleUser}, PermissionPostTimeline, Target{}))
	assert.NoError(t, g.Check(Subject{UserID: 9, Role: RoleUser}, PermissionReplyTimeline, Target{}))
}

func TestHasPermission(t *testing.T) {
	assert.True(t, HasPermission(RoleSuperAdmin, PermissionDeleteProject))
	assert.False(t, HasPermission(RoleUser, PermissionDeleteProject))
	assert.True(t, HasPermission(RoleUser, PermissionUpdateTask))
	assert.False(t, HasPermission(Role("guest"), PermissionUpdateTask))
}
