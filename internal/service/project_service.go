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
	"watchdog/pkg/config"
	"watchdog/pkg/logger"
	"watchdog/pkg/rbac"
)

type ProjectService struct {
	projects repository.ProjectStore
	members  repository.MembershipStore
	tasks    repository.TaskStore
	users    repository.Reader[model.User]
	taskSvc  *TaskService
	audit    *AuditTrailService
	guard    *rbac.Guard
	uow      *UnitOfWork
	rules    config.LifecycleConfig
	logger   *zap.Logger
}

func NewProjectService(
	stores repository.Stores,
	taskSvc *TaskService,
	audit *AuditTrailService,
	guard *rbac.Guard,
	uow *UnitOfWork,
	rules config.LifecycleConfig,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		projects: stores.Projects,
		members:  stores.Members,
		tasks:    stores.Tasks,
		users:    stores.Users,
		taskSvc:  taskSvc,
		audit:    audit,
		guard:    guard,
		uow:      uow,
		rules:    rules,
		logger:   logger,
	}
}

func projectTarget(id int) rbac.Target {
	return rbac.Target{Kind: "project", ID: id}
}

func (s *ProjectService) load(ctx context.Context, op string, projectID int) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, dependency(op, err)
	}
	if p == nil {
		return nil, notFound(op, "project", projectID)
	}
	return p, nil
}

func (s *ProjectService) CreateProject(ctx context.Context, a actor.Actor, title, description string) (id int, err error) {
	ctx, done := track(ctx, opCreateProject)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionCreateProject, rbac.Target{Kind: "project"}); err != nil {
		return 0, denied(opCreateProject, err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, invalid(opCreateProject, "title is required")
	}

	p := &model.Project{
		Title:       title,
		Description: description,
		StartDate:   time.Now().UTC(),
		Status:      model.ProjectNotStarted,
	}
	err = s.uow.Run(ctx, opCreateProject,
		func(ctx context.Context) error {
			if _, err := s.projects.Create(ctx, p); err != nil {
				return dependency(opCreateProject, err)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.audit.Append(ctx, p.ID, fmt.Sprintf("Project '%s' has been created", p.Title), model.MessageAnnouncement, true, a.ID)
			return err
		},
	)
	if err != nil {
		return 0, err
	}

	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.Int("project_id", p.ID),
		zap.Int("actor_id", a.ID),
	)
	return p.ID, nil
}

// UpdateStatus 每次调用都产生一条消息，相同状态也不例外。
// completed 时 EndDate 只在未设置时写入。
func (s *ProjectService) UpdateStatus(ctx context.Context, a actor.Actor, projectID int, status model.ProjectStatus) (err error) {
	ctx, done := track(ctx, opUpdateStatus)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionUpdateProject, projectTarget(projectID)); err != nil {
		return denied(opUpdateStatus, err)
	}
	if !status.Valid() {
		return invalid(opUpdateStatus, "unknown status %q", status)
	}
	p, err := s.load(ctx, opUpdateStatus, projectID)
	if err != nil {
		return err
	}
	if s.rules.EnforceMonotonicStatus && status.Rank() < p.Status.Rank() {
		return invalid(opUpdateStatus, "cannot move from %s back to %s", p.Status, status)
	}

	// 消息引用变更前的标题
	title := p.Title
	content := fmt.Sprintf("Project '%s' status changed to %s", title, status)
	typ, pinned := model.MessageUpdate, false
	if status == model.ProjectCompleted {
		content = fmt.Sprintf("Project '%s' has been marked as completed", title)
		typ, pinned = model.MessageMilestone, true
		if p.EndDate == nil {
			now := time.Now().UTC()
			p.EndDate = &now
		}
	}
	previous := p.Status
	p.Status = status

	err = s.uow.Run(ctx, opUpdateStatus,
		func(ctx context.Context) error {
			ok, err := s.projects.Update(ctx, p)
			if err != nil {
				return dependency(opUpdateStatus, err)
			}
			if !ok {
				return notFound(opUpdateStatus, "project", projectID)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.audit.Append(ctx, projectID, content, typ, pinned, a.ID)
			return err
		},
	)
	if err != nil {
		return err
	}

	logger.WithTrace(ctx, s.logger).Info("Project status updated",
		zap.Int("project_id", projectID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)
	return nil
}

// UpdateDetails 修改标题和描述，不影响状态和 EndDate
func (s *ProjectService) UpdateDetails(ctx context.Context, a actor.Actor, projectID int, title, description string) (err error) {
	ctx, done := track(ctx, opUpdateDetails)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionUpdateProject, projectTarget(projectID)); err != nil {
		return denied(opUpdateDetails, err)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid(opUpdateDetails, "title is required")
	}
	p, err := s.load(ctx, opUpdateDetails, projectID)
	if err != nil {
		return err
	}

	p.Title = title
	p.Description = description
	return s.uow.Run(ctx, opUpdateDetails,
		func(ctx context.Context) error {
			ok, err := s.projects.Update(ctx, p)
			if err != nil {
				return dependency(opUpdateDetails, err)
			}
			if !ok {
				return notFound(opUpdateDetails, "project", projectID)
			}
			return nil
		},
		func(ctx context.Context) error {
			_, err := s.audit.Append(ctx, projectID, fmt.Sprintf("Project '%s' details have been updated", title), model.MessageUpdate, false, a.ID)
			return err
		},
	)
}

// DeleteProject 删除后不写时间线；删除记录由存储层以事件形式保留
func (s *ProjectService) DeleteProject(ctx context.Context, a actor.Actor, projectID int) (err error) {
	ctx, done := track(ctx, opDeleteProject)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionDeleteProject, projectTarget(projectID)); err != nil {
		return denied(opDeleteProject, err)
	}
	p, err := s.load(ctx, opDeleteProject, projectID)
	if err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return dependency(opDeleteProject, err)
	}

	logger.WithTrace(ctx, s.logger).Info("Project deleted",
		zap.Int("project_id", projectID),
		zap.String("title", p.Title),
		zap.Int("actor_id", a.ID),
	)
	return nil
}

// AddMember 幂等：已是成员时返回 (false, nil) 且不产生消息
func (s *ProjectService) AddMember(ctx context.Context, a actor.Actor, projectID, userID int) (added bool, err error) {
	ctx, done := track(ctx, opAddMember)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionAddMember, projectTarget(projectID)); err != nil {
		return false, denied(opAddMember, err)
	}
	if _, err := s.load(ctx, opAddMember, projectID); err != nil {
		return false, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, dependency(opAddMember, err)
	}
	if u == nil {
		return false, invalid(opAddMember, "user does not exist")
	}

	err = s.uow.Run(ctx, opAddMember,
		func(ctx context.Context) error {
			ok, err := s.members.Add(ctx, projectID, userID)
			if err != nil {
				return dependency(opAddMember, err)
			}
			added = ok
			return nil
		},
		func(ctx context.Context) error {
			if !added {
				return nil
			}
			_, err := s.audit.Append(ctx, projectID, memberAddedMessage(u), model.MessageUpdate, false, a.ID)
			return err
		},
	)
	return added, err
}

func memberAddedMessage(u *model.User) string {
	if strings.TrimSpace(u.Username) == "" {
		return "A new team member has been added to the project"
	}
	return fmt.Sprintf("%s has been added to the project", u.Username)
}

// removalMessage 成员关系被移除或其任务被改派时各产生一条消息
func removalMessage(removed bool, reassigned int) string {
	switch {
	case removed:
		return "A team member has been removed from the project"
	case reassigned > 0:
		return "Tasks have been reassigned from a former team member"
	default:
		return ""
	}
}

// RemoveMember 先把该成员在本项目中的任务改派给 actor，再移除成员关系
func (s *ProjectService) RemoveMember(ctx context.Context, a actor.Actor, projectID, userID int) (removed bool, err error) {
	ctx, done := track(ctx, opRemoveMember)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionRemoveMember, projectTarget(projectID)); err != nil {
		return false, denied(opRemoveMember, err)
	}
	if _, err := s.load(ctx, opRemoveMember, projectID); err != nil {
		return false, err
	}

	reassigned := 0
	err = s.uow.Run(ctx, opRemoveMember,
		func(ctx context.Context) error {
			n, err := s.tasks.ReassignInProject(ctx, projectID, userID, a.ID)
			if err != nil {
				return dependency(opRemoveMember, err)
			}
			reassigned = n
			ok, err := s.members.Remove(ctx, projectID, userID)
			if err != nil {
				return dependency(opRemoveMember, err)
			}
			removed = ok
			return nil
		},
		func(ctx context.Context) error {
			msg := removalMessage(removed, reassigned)
			if msg == "" {
				return nil
			}
			_, err := s.audit.Append(ctx, projectID, msg, model.MessageUpdate, false, a.ID)
			return err
		},
	)
	if err != nil {
		return false, err
	}

	logger.WithTrace(ctx, s.logger).Info("Project member removed",
		zap.Int("project_id", projectID),
		zap.Int("user_id", userID),
		zap.Int("tasks_reassigned", reassigned),
		zap.Bool("removed", removed),
	)
	return removed, nil
}

// GetProject 组装任务、成员和时间线；不存在时返回 (nil, nil)
func (s *ProjectService) GetProject(ctx context.Context, projectID int) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	if p == nil {
		return nil, nil
	}

	if p.Tasks, err = s.taskSvc.ListByProject(ctx, projectID); err != nil {
		return nil, err
	}
	if p.Members, err = s.members.ListByProject(ctx, projectID); err != nil {
		return nil, dependency(opRead, err)
	}
	if p.Timeline, err = s.audit.ListByProject(ctx, projectID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]model.Project, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return projects, nil
}

func (s *ProjectService) ListProjectsForUser(ctx context.Context, userID int) ([]model.Project, error) {
	projects, err := s.projects.ListForMember(ctx, userID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return projects, nil
}
