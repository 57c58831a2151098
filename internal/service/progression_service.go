package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"watchdog/internal/actor"
	"watchdog/internal/model"
	"watchdog/internal/repository"
	"watchdog/pkg/logger"
	"watchdog/pkg/rbac"
)

// ProgressionService 任务内的进度记录，只追加，不写项目时间线
type ProgressionService struct {
	messages repository.ProgressionStore
	tasks    repository.Reader[model.Task]
	guard    *rbac.Guard
	logger   *zap.Logger
}

func NewProgressionService(stores repository.Stores, guard *rbac.Guard, logger *zap.Logger) *ProgressionService {
	return &ProgressionService{
		messages: stores.Progression,
		tasks:    stores.Tasks,
		guard:    guard,
		logger:   logger,
	}
}

func (s *ProgressionService) Append(ctx context.Context, a actor.Actor, taskID int, content string) (id int, err error) {
	ctx, done := track(ctx, opProgression)
	defer func() { done(err) }()

	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return 0, dependency(opProgression, err)
	}
	if t == nil {
		return 0, notFound(opProgression, "task", taskID)
	}
	if err := s.guard.Check(a.Subject(), rbac.PermissionPostProgression, taskTarget(t)); err != nil {
		return 0, denied(opProgression, err)
	}
	if strings.TrimSpace(content) == "" {
		return 0, invalid(opProgression, "content is required")
	}

	id, err = s.messages.Create(ctx, &model.ProgressionMessage{TaskID: taskID, AuthorID: a.ID, Content: content})
	if err != nil {
		return 0, dependency(opProgression, err)
	}

	logger.WithTrace(ctx, s.logger).Debug("Progression message appended",
		zap.Int("task_id", taskID),
		zap.Int("message_id", id),
	)
	return id, nil
}

func (s *ProgressionService) ListByTask(ctx context.Context, taskID int) ([]model.ProgressionMessage, error) {
	msgs, err := s.messages.ListByParent(ctx, taskID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return msgs, nil
}
