package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"watchdog/internal/model"
)

type ReplyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewReplyRepository(db *pgxpool.Pool, logger *zap.Logger) *ReplyRepository {
	return &ReplyRepository{db: db, logger: logger}
}

func (r *ReplyRepository) Create(ctx context.Context, reply *model.TimelineReply) (int, error) {
	defer observe("insert", "timeline_replies")()

	err := r.db.QueryRow(ctx, `
		INSERT INTO timeline_replies (message_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, reply.MessageID, reply.AuthorID, reply.Content).Scan(&reply.ID, &reply.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert timeline reply: %w", err)
	}
	return reply.ID, nil
}

func (r *ReplyRepository) ListByParent(ctx context.Context, messageID int) ([]model.TimelineReply, error) {
	defer observe("select", "timeline_replies")()

	rows, err := r.db.Query(ctx, `
		SELECT id, message_id, author_id, content, created_at
		FROM timeline_replies WHERE message_id = $1 ORDER BY created_at, id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("query timeline replies: %w", err)
	}
	defer rows.Close()

	replies := make([]model.TimelineReply, 0)
	for rows.Next() {
		var reply model.TimelineReply
		if err := rows.Scan(&reply.ID, &reply.MessageID, &reply.AuthorID, &reply.Content, &reply.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline reply: %w", err)
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}

type ProgressionRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProgressionRepository(db *pgxpool.Pool, logger *zap.Logger) *ProgressionRepository {
	return &ProgressionRepository{db: db, logger: logger}
}

func (r *ProgressionRepository) Create(ctx context.Context, m *model.ProgressionMessage) (int, error) {
	defer observe("insert", "progression_messages")()

	err := r.db.QueryRow(ctx, `
		INSERT INTO progression_messages (task_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.TaskID, m.AuthorID, m.Content).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert progression message: %w", err)
	}
	return m.ID, nil
}

func (r *ProgressionRepository) ListByParent(ctx context.Context, taskID int) ([]model.ProgressionMessage, error) {
	defer observe("select", "progression_messages")()

	rows, err := r.db.Query(ctx, `
		SELECT id, task_id, author_id, content, created_at
		FROM progression_messages WHERE task_id = $1 ORDER BY created_at, id
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query progression messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.ProgressionMessage, 0)
	for rows.Next() {
		var m model.ProgressionMessage
		if err := rows.Scan(&m.ID, &m.TaskID, &m.AuthorID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan progression message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
