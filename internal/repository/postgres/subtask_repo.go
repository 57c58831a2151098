package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"watchdog/internal/model"
)

type SubtaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSubtaskRepository(db *pgxpool.Pool, logger *zap.Logger) *SubtaskRepository {
	return &SubtaskRepository{db: db, logger: logger}
}

const subtaskColumns = `id, task_id, created_by_id, description, status, completed_date, created_at`

func scanSubtask(row pgx.Row) (*model.SubTask, error) {
	var s model.SubTask
	if err := row.Scan(&s.ID, &s.TaskID, &s.CreatedByID, &s.Description, &s.Status, &s.CompletedDate, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubtaskRepository) GetByID(ctx context.Context, id int) (*model.SubTask, error) {
	defer observe("select", "subtasks")()

	s, err := scanSubtask(r.db.QueryRow(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subtask %d: %w", id, err)
	}
	return s, nil
}

func (r *SubtaskRepository) ListByParent(ctx context.Context, taskID int) ([]model.SubTask, error) {
	defer observe("select", "subtasks")()

	rows, err := r.db.Query(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE task_id = $1 ORDER BY id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := make([]model.SubTask, 0)
	for rows.Next() {
		s, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		subtasks = append(subtasks, *s)
	}
	return subtasks, rows.Err()
}

func (r *SubtaskRepository) Create(ctx context.Context, s *model.SubTask) (int, error) {
	defer observe("insert", "subtasks")()

	err := r.db.QueryRow(ctx, `
		INSERT INTO subtasks (task_id, created_by_id, description, status, completed_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.TaskID, s.CreatedByID, s.Description, s.Status, s.CompletedDate).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert subtask: %w", err)
	}
	return s.ID, nil
}

func (r *SubtaskRepository) Update(ctx context.Context, s *model.SubTask) (bool, error) {
	defer observe("update", "subtasks")()

	tag, err := r.db.Exec(ctx, `
		UPDATE subtasks SET description = $2, status = $3, completed_date = $4
		WHERE id = $1
	`, s.ID, s.Description, s.Status, s.CompletedDate)
	if err != nil {
		return false, fmt.Errorf("update subtask %d: %w", s.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SubtaskRepository) Delete(ctx context.Context, id int) error {
	defer observe("delete", "subtasks")()

	if _, err := r.db.Exec(ctx, `DELETE FROM subtasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subtask %d: %w", id, err)
	}
	return nil
}
