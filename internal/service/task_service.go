package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"watchdog/internal/actor"
	"watchdog/internal/model"
	"watchdog/internal/repository"
	"watchdog/pkg/logger"
	"watchdog/pkg/rbac"
)

// TaskUpdate 只应用非 nil 字段
type TaskUpdate struct {
	Remarks        *string
	Percentage     *int
	AssignedUserID *int
}

type TaskService struct {
	tasks       repository.TaskStore
	subtasks    repository.ParentLister[model.SubTask]
	progression repository.ParentLister[model.ProgressionMessage]
	projects    repository.Reader[model.Project]
	users       repository.Reader[model.User]
	audit       *AuditTrailService
	guard       *rbac.Guard
	uow         *UnitOfWork
	logger      *zap.Logger
}

func NewTaskService(stores repository.Stores, audit *AuditTrailService, guard *rbac.Guard, uow *UnitOfWork, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:       stores.Tasks,
		subtasks:    stores.Subtasks,
		progression: stores.Progression,
		projects:    stores.Projects,
		users:       stores.Users,
		audit:       audit,
		guard:       guard,
		uow:         uow,
		logger:      logger,
	}
}

func taskTarget(t *model.Task) rbac.Target {
	return rbac.Target{Kind: "task", ID: t.ID, AssignedUserID: t.AssignedUserID}
}

func (s *TaskService) CreateTask(ctx context.Context, a actor.Actor, description string, projectID, assignedUserID int) (id int, err error) {
	ctx, done := track(ctx, opCreateTask)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionCreateTask, rbac.Target{Kind: "project", ID: projectID}); err != nil {
		return 0, denied(opCreateTask, err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, invalid(opCreateTask, "description is required")
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return 0, dependency(opCreateTask, err)
	}
	if p == nil {
		return 0, notFound(opCreateTask, "project", projectID)
	}
	if err := s.requireUser(ctx, opCreateTask, assignedUserID); err != nil {
		return 0, err
	}

	t := &model.Task{
		ProjectID:      projectID,
		AssignedUserID: assignedUserID,
		Description:    description,
		Progress:       model.Explicit(0),
	}
	err = s.uow.Run(ctx, opCreateTask,
		func(ctx context.Context) error {
			if _, err := s.tasks.Create(ctx, t); err != nil {
				return dependency(opCreateTask, err)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.audit.Append(ctx, projectID, fmt.Sprintf("Task '%s' has been created", t.Description), model.MessageUpdate, false, a.ID)
			return err
		},
	)
	if err != nil {
		return 0, err
	}

	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.Int("task_id", t.ID),
		zap.Int("project_id", projectID),
		zap.Int("assigned_user_id", assignedUserID),
	)
	return t.ID, nil
}

// UpdateTask 任务不存在返回 NotFound；没有任何变化时不写入也不产生消息
func (s *TaskService) UpdateTask(ctx context.Context, a actor.Actor, taskID int, upd TaskUpdate) (err error) {
	ctx, done := track(ctx, opUpdateTask)
	defer func() { done(err) }()

	before, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return dependency(opUpdateTask, err)
	}
	if before == nil {
		return notFound(opUpdateTask, "task", taskID)
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionUpdateTask, taskTarget(before)); err != nil {
		return denied(opUpdateTask, err)
	}

	after := *before
	if upd.Percentage != nil {
		pct := *upd.Percentage
		if pct < 0 || pct > 100 {
			return invalid(opUpdateTask, "percentage must be between 0 and 100")
		}
		subs, err := s.subtasks.ListByParent(ctx, taskID)
		if err != nil {
			return dependency(opUpdateTask, err)
		}
		if len(subs) > 0 {
			return invalid(opUpdateTask, "percentage is derived from subtasks")
		}
		after.Progress = model.Explicit(pct)
	}
	if upd.AssignedUserID != nil && *upd.AssignedUserID != before.AssignedUserID {
		if err := s.requireUser(ctx, opUpdateTask, *upd.AssignedUserID); err != nil {
			return err
		}
		after.AssignedUserID = *upd.AssignedUserID
	}
	if upd.Remarks != nil {
		after.Remarks = *upd.Remarks
	}

	return s.commit(ctx, opUpdateTask, a, *before, &after)
}

// RollUp 按子任务重新计算百分比，走和 UpdateTask 相同的完成规则；没有子任务时保持原值
func (s *TaskService) RollUp(ctx context.Context, a actor.Actor, taskID int) (err error) {
	ctx, done := track(ctx, opRollUp)
	defer func() { done(err) }()

	before, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return dependency(opRollUp, err)
	}
	if before == nil {
		return notFound(opRollUp, "task", taskID)
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionUpdateTask, taskTarget(before)); err != nil {
		return denied(opRollUp, err)
	}

	subs, err := s.subtasks.ListByParent(ctx, taskID)
	if err != nil {
		return dependency(opRollUp, err)
	}
	if len(subs) == 0 {
		return nil
	}

	after := *before
	after.Progress = model.Derived(Aggregate(completionFlags(subs)))
	return s.commit(ctx, opRollUp, a, *before, &after)
}

// commit 写入任务并追加一条消息：百分比从 <100 变为 100 时为 Milestone，其余变化为 Update
func (s *TaskService) commit(ctx context.Context, op string, a actor.Actor, before model.Task, after *model.Task) error {
	completed := before.Progress.Value < 100 && after.Progress.Value == 100
	if completed && after.CompletedDate == nil {
		now := time.Now().UTC()
		after.CompletedDate = &now
	}
	if !taskChanged(before, *after) {
		return nil
	}

	content := fmt.Sprintf("Task '%s' has been updated", after.Description)
	typ := model.MessageUpdate
	if completed {
		content = fmt.Sprintf("Task '%s' has been completed", after.Description)
		typ = model.MessageMilestone
	}

	err := s.uow.Run(ctx, op,
		func(ctx context.Context) error {
			ok, err := s.tasks.Update(ctx, after)
			if err != nil {
				return dependency(op, err)
			}
			if !ok {
				return notFound(op, "task", after.ID)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.audit.Append(ctx, after.ProjectID, content, typ, false, a.ID)
			return err
		},
	)
	if err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Task updated",
		zap.String("operation", op),
		zap.Int("task_id", after.ID),
		zap.Int("percentage", after.Progress.Value),
		zap.Bool("completed", completed),
	)
	return nil
}

func taskChanged(before, after model.Task) bool {
	return before.Remarks != after.Remarks ||
		before.AssignedUserID != after.AssignedUserID ||
		before.Progress.Value != after.Progress.Value ||
		(before.CompletedDate == nil) != (after.CompletedDate == nil)
}

// DeleteTask 任务不存在返回 NotFound
func (s *TaskService) DeleteTask(ctx context.Context, a actor.Actor, taskID int) (err error) {
	ctx, done := track(ctx, opDeleteTask)
	defer func() { done(err) }()

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return dependency(opDeleteTask, err)
	}
	if t == nil {
		return notFound(opDeleteTask, "task", taskID)
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionDeleteTask, taskTarget(t)); err != nil {
		return denied(opDeleteTask, err)
	}

	return s.uow.Run(ctx, opDeleteTask,
		func(ctx context.Context) error {
			if err := s.tasks.Delete(ctx, taskID); err != nil {
				return dependency(opDeleteTask, err)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.audit.Append(ctx, t.ProjectID, fmt.Sprintf("Task '%s' has been deleted", t.Description), model.MessageUpdate, false, a.ID)
			return err
		},
	)
}

// GetTask 不存在时返回 (nil, nil)
func (s *TaskService) GetTask(ctx context.Context, taskID int) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	if t == nil {
		return nil, nil
	}
	if err := s.hydrate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) ListByProject(ctx context.Context, projectID int) ([]model.Task, error) {
	tasks, err := s.tasks.ListByParent(ctx, projectID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return s.hydrateAll(ctx, tasks)
}

func (s *TaskService) ListByAssignedUser(ctx context.Context, userID int) ([]model.Task, error) {
	tasks, err := s.tasks.ListByAssignedUser(ctx, userID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return s.hydrateAll(ctx, tasks)
}

func (s *TaskService) hydrateAll(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	for i := range tasks {
		if err := s.hydrate(ctx, &tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// hydrate 加载子任务和进度消息；有子任务时百分比为派生值
func (s *TaskService) hydrate(ctx context.Context, t *model.Task) error {
	subs, err := s.subtasks.ListByParent(ctx, t.ID)
	if err != nil {
		return dependency(opRead, err)
	}
	msgs, err := s.progression.ListByParent(ctx, t.ID)
	if err != nil {
		return dependency(opRead, err)
	}
	t.SubTasks = subs
	t.ProgressionMessages = msgs
	if len(subs) > 0 {
		t.Progress = model.Derived(Aggregate(completionFlags(subs)))
	} else {
		t.Progress = model.Explicit(t.Progress.Value)
	}
	return nil
}

func (s *TaskService) requireUser(ctx context.Context, op string, userID int) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return dependency(op, err)
	}
	if u == nil {
		return invalid(op, "assignee does not exist")
	}
	return nil
}
