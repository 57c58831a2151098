// Package actor 操作执行时的身份
package actor

import (
	"context"
	"errors"

	"watchdog/pkg/rbac"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Actor 显式传给每个生命周期操作，操作内部只读
type Actor struct {
	ID       int
	Role     rbac.Role
	Username string
}

func (a Actor) Subject() rbac.Subject {
	return rbac.Subject{UserID: a.ID, Role: a.Role}
}

func (a Actor) IsSuperAdmin() bool {
	return a.Role == rbac.RoleSuperAdmin
}

type ctxKey struct{}

// WithActor 仅供 HTTP 鉴权中间件使用
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext 无会话时返回 ErrUnauthenticated
func FromContext(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	if !ok || a.ID <= 0 {
		return Actor{}, ErrUnauthenticated
	}
	return a, nil
}
