package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchdog/internal/actor"
	"watchdog/internal/model"
	"watchdog/internal/repository"
	"watchdog/internal/repository/memory"
	"watchdog/pkg/config"
	"watchdog/pkg/rbac"
)

type fixture struct {
	stores      repository.Stores
	audit       *AuditTrailService
	tasks       *TaskService
	subtasks    *SubtaskService
	projects    *ProjectService
	progression *ProgressionService
	users       *UserService

	admin  actor.Actor
	member actor.Actor
	other  actor.Actor
}

func newFixture(t *testing.T, rules config.LifecycleConfig) *fixture {
	t.Helper()
	return newFixtureWithStores(t, newMemoryStores(), rules)
}

func newMemoryStores() repository.Stores {
	return memory.New().Stores()
}

func newFixtureWithStores(t *testing.T, stores repository.Stores, rules config.LifecycleConfig) *fixture {
	t.Helper()
	log := zap.NewNop()
	guard := rbac.NewGuard()
	uow := NewUnitOfWork(log)

	f := &fixture{stores: stores}
	f.audit = NewAuditTrailService(stores, guard, log)
	f.tasks = NewTaskService(stores, f.audit, guard, uow, log)
	f.subtasks = NewSubtaskService(stores, f.tasks, guard, log)
	f.projects = NewProjectService(stores, f.tasks, f.audit, guard, uow, rules, log)
	f.progression = NewProgressionService(stores, guard, log)
	f.users = NewUserService(stores, guard, config.JWTConfig{Secret: "test-secret", TTL: time.Hour}, log)

	f.admin = f.addUser(t, "admin", rbac.RoleSuperAdmin)
	f.member = f.addUser(t, "alice", rbac.RoleUser)
	f.other = f.addUser(t, "bob", rbac.RoleUser)
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role rbac.Role) actor.Actor {
	t.Helper()
	id, err := f.stores.Users.Create(context.Background(), &model.User{
		Username: name,
		Email:    name + "@example.com",
		Role:     role,
	})
	require.NoError(t, err)
	return actor.Actor{ID: id, Role: role, Username: name}
}

func (f *fixture) newProject(t *testing.T, title string) int {
	t.Helper()
	id, err := f.projects.CreateProject(context.Background(), f.admin, title, "")
	require.NoError(t, err)
	return id
}

func (f *fixture) newTask(t *testing.T, projectID int, description string, assignee actor.Actor) int {
	t.Helper()
	id, err := f.tasks.CreateTask(context.Background(), f.admin, description, projectID, assignee.ID)
	require.NoError(t, err)
	return id
}

func (f *fixture) timeline(t *testing.T, projectID int) []model.TimelineMessage {
	t.Helper()
	msgs, err := f.audit.ListByProject(context.Background(), projectID)
	require.NoError(t, err)
	return msgs
}

func (f *fixture) task(t *testing.T, taskID int) *model.Task {
	t.Helper()
	task, err := f.tasks.GetTask(context.Background(), taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func last(msgs []model.TimelineMessage) model.TimelineMessage {
	return msgs[len(msgs)-1]
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func statusPtr(v model.SubTaskStatus) *model.SubTaskStatus { return &v }

// failingTimeline 让时间线写入失败，其余操作照常
type failingTimeline struct {
	repository.TimelineStore
}

func (failingTimeline) Create(context.Context, *model.TimelineMessage) (int, error) {
	return 0, errors.New("timeline unavailable")
}
