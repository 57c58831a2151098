package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"watchdog/internal/actor"
	"watchdog/internal/model"
	"watchdog/internal/repository"
	"watchdog/pkg/logger"
	"watchdog/pkg/rbac"
)

// Rollup 在子任务组成变化后重新计算父任务百分比
type Rollup interface {
	RollUp(ctx context.Context, a actor.Actor, taskID int) error
}

// SubtaskUpdate 只应用非 nil 字段
type SubtaskUpdate struct {
	Description *string
	Status      *model.SubTaskStatus
}

// SubtaskService 子任务不写时间线；授权始终按父任务的负责人判断
type SubtaskService struct {
	subtasks repository.SubtaskStore
	tasks    repository.Reader[model.Task]
	rollup   Rollup
	guard    *rbac.Guard
	logger   *zap.Logger
}

func NewSubtaskService(stores repository.Stores, rollup Rollup, guard *rbac.Guard, logger *zap.Logger) *SubtaskService {
	return &SubtaskService{
		subtasks: stores.Subtasks,
		tasks:    stores.Tasks,
		rollup:   rollup,
		guard:    guard,
		logger:   logger,
	}
}

func (s *SubtaskService) parent(ctx context.Context, op string, taskID int) (*model.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, dependency(op, err)
	}
	if t == nil {
		return nil, notFound(op, "task", taskID)
	}
	return t, nil
}

// CreateSubtask 创建者为当前 actor；子任务写入后即使汇总失败也保留，返回的 id 有效
func (s *SubtaskService) CreateSubtask(ctx context.Context, a actor.Actor, description string, taskID int) (id int, err error) {
	ctx, done := track(ctx, opCreateSubtask)
	defer func() { done(err) }()

	t, err := s.parent(ctx, opCreateSubtask, taskID)
	if err != nil {
		return 0, err
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionCreateSubtask, taskTarget(t)); err != nil {
		return 0, denied(opCreateSubtask, err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return 0, invalid(opCreateSubtask, "description is required")
	}

	st := &model.SubTask{
		TaskID:      taskID,
		CreatedByID: a.ID,
		Description: description,
		Status:      model.SubTaskNotStarted,
	}
	if _, err := s.subtasks.Create(ctx, st); err != nil {
		return 0, dependency(opCreateSubtask, err)
	}

	logger.WithTrace(ctx, s.logger).Info("Subtask created",
		zap.Int("subtask_id", st.ID),
		zap.Int("task_id", taskID),
	)
	return st.ID, s.rollUp(ctx, opCreateSubtask, a, taskID)
}

func (s *SubtaskService) UpdateSubtask(ctx context.Context, a actor.Actor, subtaskID int, upd SubtaskUpdate) (err error) {
	ctx, done := track(ctx, opUpdateSubtask)
	defer func() { done(err) }()

	st, err := s.subtasks.GetByID(ctx, subtaskID)
	if err != nil {
		return dependency(opUpdateSubtask, err)
	}
	if st == nil {
		return notFound(opUpdateSubtask, "subtask", subtaskID)
	}
	t, err := s.parent(ctx, opUpdateSubtask, st.TaskID)
	if err != nil {
		return err
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionUpdateSubtask, taskTarget(t)); err != nil {
		return denied(opUpdateSubtask, err)
	}

	wasCompleted := st.Completed()
	if upd.Description != nil {
		d := strings.TrimSpace(*upd.Description)
		if d == "" {
			return invalid(opUpdateSubtask, "description is required")
		}
		st.Description = d
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return invalid(opUpdateSubtask, "unknown status %q", *upd.Status)
		}
		st.Status = *upd.Status
	}

	nowCompleted := st.Completed()
	switch {
	case nowCompleted && !wasCompleted:
		now := time.Now().UTC()
		st.CompletedDate = &now
	case !nowCompleted && wasCompleted:
		st.CompletedDate = nil
	}

	ok, err := s.subtasks.Update(ctx, st)
	if err != nil {
		return dependency(opUpdateSubtask, err)
	}
	if !ok {
		return notFound(opUpdateSubtask, "subtask", subtaskID)
	}

	if nowCompleted == wasCompleted {
		return nil
	}
	return s.rollUp(ctx, opUpdateSubtask, a, st.TaskID)
}

// DeleteSubtask 和其他子任务写操作一样需要授权，不写时间线
func (s *SubtaskService) DeleteSubtask(ctx context.Context, a actor.Actor, subtaskID int) (err error) {
	ctx, done := track(ctx, opDeleteSubtask)
	defer func() { done(err) }()

	st, err := s.subtasks.GetByID(ctx, subtaskID)
	if err != nil {
		return dependency(opDeleteSubtask, err)
	}
	if st == nil {
		return notFound(opDeleteSubtask, "subtask", subtaskID)
	}
	t, err := s.parent(ctx, opDeleteSubtask, st.TaskID)
	if err != nil {
		return err
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionDeleteSubtask, taskTarget(t)); err != nil {
		return denied(opDeleteSubtask, err)
	}

	if err := s.subtasks.Delete(ctx, subtaskID); err != nil {
		return dependency(opDeleteSubtask, err)
	}
	return s.rollUp(ctx, opDeleteSubtask, a, st.TaskID)
}

// GetSubtask 不存在时返回 (nil, nil)
func (s *SubtaskService) GetSubtask(ctx context.Context, subtaskID int) (*model.SubTask, error) {
	st, err := s.subtasks.GetByID(ctx, subtaskID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return st, nil
}

func (s *SubtaskService) ListByTask(ctx context.Context, taskID int) ([]model.SubTask, error) {
	subs, err := s.subtasks.ListByParent(ctx, taskID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return subs, nil
}

// rollUp 汇总不在同一事务内：失败时子任务写入保留，错误以 ErrDependency 返回
func (s *SubtaskService) rollUp(ctx context.Context, op string, a actor.Actor, taskID int) error {
	if err := s.rollup.RollUp(ctx, a, taskID); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Task roll-up failed after subtask write",
			zap.String("operation", op),
			zap.Int("task_id", taskID),
			zap.Error(err),
		)
		return &OpError{Op: op, Kind: ErrDependency, Reason: "roll-up failed", Err: err}
	}
	return nil
}
