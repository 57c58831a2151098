package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"watchdog/pkg/rbac"
)

func TestKindOfUsesOutermostOpError(t *testing.T) {
	inner := notFound(opRollUp, "task", 3)
	err := &OpError{Op: opCreateSubtask, Kind: ErrDependency, Reason: "roll-up failed", Err: inner}

	assert.Equal(t, ErrDependency, KindOf(err))
	assert.ErrorIs(t, err, ErrDependency)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "error", Outcome(err))
}

func TestKindOfPlainErrors(t *testing.T) {
	assert.Nil(t, KindOf(nil))
	assert.Equal(t, ErrDependency, KindOf(errors.New("boom")))

	pd := &rbac.PermissionDeniedError{UserID: 2, Permission: rbac.PermissionCreateProject, Reason: "requires super admin"}
	assert.Equal(t, ErrUnauthorized, KindOf(fmt.Errorf("wrapped: %w", pd)))
}

func TestDependencyKeepsOpErrors(t *testing.T) {
	v := invalid(opCreateTask, "assignee does not exist")
	assert.Same(t, v, dependency(opCreateTask, v))

	d := dependency(opCreateTask, errors.New("connection refused"))
	var opErr *OpError
	assert.True(t, errors.As(d, &opErr))
	assert.Equal(t, ErrDependency, opErr.Kind)
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", invalid(opCreateProject, "title is required"), "validation failed: title is required"},
		{"not found", notFound(opUpdateTask, "task", 9), "not found"},
		{"denied", denied(opDeleteProject, &rbac.PermissionDeniedError{Reason: "requires super admin"}), "unauthorized"},
		{"login", &OpError{Op: opAuthenticate, Kind: ErrUnauthorized, Reason: "bad credentials"}, "invalid email or password"},
		{"storage text hidden", dependency(opAppend, errors.New("pq: relation does not exist")), "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicMessage(tt.err))
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "invalid", Outcome(invalid(opPost, "x")))
	assert.Equal(t, "not_found", Outcome(notFound(opPost, "project", 1)))
	assert.Equal(t, "unauthorized", Outcome(denied(opPost, errors.New("no"))))
}
