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

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

const taskColumns = `id, project_id, assigned_user_id, description, remarks, start_date,
	completed_date, percentage_complete, created_at`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	var pct int
	err := row.Scan(&t.ID, &t.ProjectID, &t.AssignedUserID, &t.Description, &t.Remarks,
		&t.StartDate, &t.CompletedDate, &pct, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Progress = model.Explicit(pct)
	return &t, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int) (*model.Task, error) {
	defer observe("select", "tasks")()

	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

func (r *TaskRepository) ListByParent(ctx context.Context, projectID int) ([]model.Task, error) {
	defer observe("select", "tasks")()
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY id`, projectID)
}

func (r *TaskRepository) ListByAssignedUser(ctx context.Context, userID int) ([]model.Task, error) {
	defer observe("select", "tasks")()
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assigned_user_id = $1 ORDER BY id`, userID)
}

func (r *TaskRepository) query(ctx context.Context, sql string, args ...any) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Create(ctx context.Context, t *model.Task) (int, error) {
	defer observe("insert", "tasks")()

	err := r.db.QueryRow(ctx, `
		INSERT INTO tasks (project_id, assigned_user_id, description, remarks, start_date,
		                   completed_date, percentage_complete)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, t.ProjectID, t.AssignedUserID, t.Description, t.Remarks, t.StartDate,
		t.CompletedDate, t.Progress.Value).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task", zap.Int("project_id", t.ProjectID), zap.Error(err))
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *model.Task) (bool, error) {
	defer observe("update", "tasks")()

	tag, err := r.db.Exec(ctx, `
		UPDATE tasks
		SET assigned_user_id = $2, description = $3, remarks = $4, start_date = $5,
		    completed_date = $6, percentage_complete = $7
		WHERE id = $1
	`, t.ID, t.AssignedUserID, t.Description, t.Remarks, t.StartDate, t.CompletedDate, t.Progress.Value)
	if err != nil {
		return false, fmt.Errorf("update task %d: %w", t.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	defer observe("delete", "tasks")()

	if _, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

func (r *TaskRepository) ReassignInProject(ctx context.Context, projectID, from, to int) (int, error) {
	defer observe("update", "tasks")()

	tag, err := r.db.Exec(ctx, `
		UPDATE tasks SET assigned_user_id = $3
		WHERE project_id = $1 AND assigned_user_id = $2
	`, projectID, from, to)
	if err != nil {
		return 0, fmt.Errorf("reassign tasks in project %d: %w", projectID, err)
	}
	return int(tag.RowsAffected()), nil
}
