package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contractsmq "watchdog/contracts/mq"
	"watchdog/internal/model"
	"watchdog/pkg/outbox"
	"watchdog/pkg/trace"
)

type TimelineRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewTimelineRepository(db *pgxpool.Pool, ob *outbox.Repository, logger *zap.Logger) *TimelineRepository {
	return &TimelineRepository{db: db, outbox: ob, logger: logger}
}

const timelineSelect = `
	SELECT m.id, m.project_id, m.author_id, COALESCE(u.username, ''), m.content, m.type, m.is_pinned, m.created_at
	FROM timeline_messages m
	LEFT JOIN users u ON u.id = m.author_id`

func scanMessage(row pgx.Row) (*model.TimelineMessage, error) {
	var m model.TimelineMessage
	if err := row.Scan(&m.ID, &m.ProjectID, &m.AuthorID, &m.AuthorName, &m.Content, &m.Type, &m.Pinned, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *TimelineRepository) GetByID(ctx context.Context, id int) (*model.TimelineMessage, error) {
	defer observe("select", "timeline_messages")()

	m, err := scanMessage(r.db.QueryRow(ctx, timelineSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get timeline message %d: %w", id, err)
	}
	return m, nil
}

func (r *TimelineRepository) ListByParent(ctx context.Context, projectID int) ([]model.TimelineMessage, error) {
	defer observe("select", "timeline_messages")()

	rows, err := r.db.Query(ctx, timelineSelect+` WHERE m.project_id = $1 ORDER BY m.created_at, m.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	messages := make([]model.TimelineMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// Create 写入消息并在同一事务里写入 lifecycle.timeline.appended 事件
func (r *TimelineRepository) Create(ctx context.Context, m *model.TimelineMessage) (int, error) {
	defer observe("insert", "timeline_messages")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO timeline_messages (project_id, author_id, content, type, is_pinned)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.ProjectID, m.AuthorID, m.Content, m.Type, m.Pinned).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert timeline message: %w", err)
	}

	payload := contractsmq.TimelineAppendedPayload{
		TraceID:   trace.FromContext(ctx),
		MessageID: m.ID,
		ProjectID: m.ProjectID,
		AuthorID:  m.AuthorID,
		Type:      string(m.Type),
		Pinned:    m.Pinned,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outbox, "timeline_message", int64(m.ID), contractsmq.RoutingKeyTimelineAppended, payload); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit timeline message: %w", err)
	}
	return m.ID, nil
}

// Update 只修改类型和置顶标记，内容不可改
func (r *TimelineRepository) Update(ctx context.Context, m *model.TimelineMessage) (bool, error) {
	defer observe("update", "timeline_messages")()

	tag, err := r.db.Exec(ctx, `
		UPDATE timeline_messages SET type = $2, is_pinned = $3 WHERE id = $1
	`, m.ID, m.Type, m.Pinned)
	if err != nil {
		return false, fmt.Errorf("update timeline message %d: %w", m.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}
