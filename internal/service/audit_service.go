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

// AuditTrailService 是唯一创建时间线消息的地方
type AuditTrailService struct {
	timeline repository.TimelineStore
	replies  repository.ReplyStore
	projects repository.Reader[model.Project]
	guard    *rbac.Guard
	logger   *zap.Logger
}

func NewAuditTrailService(stores repository.Stores, guard *rbac.Guard, logger *zap.Logger) *AuditTrailService {
	return &AuditTrailService{
		timeline: stores.Timeline,
		replies:  stores.Replies,
		projects: stores.Projects,
		guard:    guard,
		logger:   logger,
	}
}

// Append 写入一条不可变的时间线消息
func (s *AuditTrailService) Append(ctx context.Context, projectID int, content string, typ model.MessageType, pinned bool, authorID int) (id int, err error) {
	ctx, done := track(ctx, opAppend)
	defer func() { done(err) }()

	if strings.TrimSpace(content) == "" {
		return 0, invalid(opAppend, "content is required")
	}
	if !typ.Valid() {
		return 0, invalid(opAppend, "unknown message type %q", typ)
	}

	m := &model.TimelineMessage{
		ProjectID: projectID,
		AuthorID:  authorID,
		Content:   content,
		Type:      typ,
		Pinned:    pinned,
	}
	id, err = s.timeline.Create(ctx, m)
	if err != nil {
		return 0, dependency(opAppend, err)
	}

	logger.WithTrace(ctx, s.logger).Debug("Timeline message appended",
		zap.Int("project_id", projectID),
		zap.Int("message_id", id),
		zap.String("type", string(typ)),
	)
	return id, nil
}

// Post 用户手动发布消息（问题、更新等），不能置顶
func (s *AuditTrailService) Post(ctx context.Context, a actor.Actor, projectID int, content string, typ model.MessageType) (id int, err error) {
	ctx, done := track(ctx, opPost)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionPostTimeline, rbac.Target{Kind: "project", ID: projectID}); err != nil {
		return 0, denied(opPost, err)
	}
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return 0, dependency(opPost, err)
	}
	if p == nil {
		return 0, notFound(opPost, "project", projectID)
	}
	return s.Append(ctx, projectID, content, typ, false, a.ID)
}

func (s *AuditTrailService) ListByProject(ctx context.Context, projectID int) ([]model.TimelineMessage, error) {
	messages, err := s.timeline.ListByParent(ctx, projectID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return messages, nil
}

// Get 不存在时返回 (nil, nil)
func (s *AuditTrailService) Get(ctx context.Context, messageID int) (*model.TimelineMessage, error) {
	m, err := s.timeline.GetByID(ctx, messageID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return m, nil
}

// Reply 回复已有消息，消息不存在返回 NotFound
func (s *AuditTrailService) Reply(ctx context.Context, a actor.Actor, messageID int, content string) (id int, err error) {
	ctx, done := track(ctx, opReply)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionReplyTimeline, rbac.Target{Kind: "timeline_message", ID: messageID}); err != nil {
		return 0, denied(opReply, err)
	}
	if strings.TrimSpace(content) == "" {
		return 0, invalid(opReply, "content is required")
	}
	m, err := s.timeline.GetByID(ctx, messageID)
	if err != nil {
		return 0, dependency(opReply, err)
	}
	if m == nil {
		return 0, notFound(opReply, "timeline message", messageID)
	}

	id, err = s.replies.Create(ctx, &model.TimelineReply{MessageID: messageID, AuthorID: a.ID, Content: content})
	if err != nil {
		return 0, dependency(opReply, err)
	}
	return id, nil
}

func (s *AuditTrailService) ListReplies(ctx context.Context, messageID int) ([]model.TimelineReply, error) {
	replies, err := s.replies.ListByParent(ctx, messageID)
	if err != nil {
		return nil, dependency(opRead, err)
	}
	return replies, nil
}

// Reclassify 只修改类型和置顶标记；没有变化时返回 false
func (s *AuditTrailService) Reclassify(ctx context.Context, a actor.Actor, messageID int, typ model.MessageType, pinned bool) (changed bool, err error) {
	ctx, done := track(ctx, opReclassify)
	defer func() { done(err) }()

	if err := s.guard.Check(a.Subject(), rbac.PermissionReclassify, rbac.Target{Kind: "timeline_message", ID: messageID}); err != nil {
		return false, denied(opReclassify, err)
	}
	if !typ.Valid() {
		return false, invalid(opReclassify, "unknown message type %q", typ)
	}
	m, err := s.timeline.GetByID(ctx, messageID)
	if err != nil {
		return false, dependency(opReclassify, err)
	}
	if m == nil {
		return false, notFound(opReclassify, "timeline message", messageID)
	}
	if m.Type == typ && m.Pinned == pinned {
		return false, nil
	}

	m.Type = typ
	m.Pinned = pinned
	ok, err := s.timeline.Update(ctx, m)
	if err != nil {
		return false, dependency(opReclassify, err)
	}
	if !ok {
		return false, notFound(opReclassify, "timeline message", messageID)
	}

	logger.WithTrace(ctx, s.logger).Info("Timeline message reclassified",
		zap.Int("message_id", messageID),
		zap.String("type", string(typ)),
		zap.Bool("pinned", pinned),
	)
	return true, nil
}
