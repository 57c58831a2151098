package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contractsmq "watchdog/contracts/mq"
	"watchdog/internal/model"
	"watchdog/pkg/outbox"
	"watchdog/pkg/trace"
)

type ProjectRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, ob *outbox.Repository, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, outbox: ob, logger: logger}
}

const projectColumns = `id, title, description, start_date, end_date, status, created_at`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.StartDate, &p.EndDate, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int) (*model.Project, error) {
	defer observe("select", "projects")()

	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) (int, error) {
	defer observe("insert", "projects")()

	r.logger.Debug("Inserting project", zap.String("title", p.Title))

	err := r.db.QueryRow(ctx, `
		INSERT INTO projects (title, description, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Title, p.Description, p.StartDate, p.EndDate, p.Status).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return 0, fmt.Errorf("insert project: %w", err)
	}
	return p.ID, nil
}

func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) (bool, error) {
	defer observe("update", "projects")()

	tag, err := r.db.Exec(ctx, `
		UPDATE projects
		SET title = $2, description = $3, start_date = $4, end_date = $5, status = $6
		WHERE id = $1
	`, p.ID, p.Title, p.Description, p.StartDate, p.EndDate, p.Status)
	if err != nil {
		return false, fmt.Errorf("update project %d: %w", p.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete 删除项目并在同一事务里写入 lifecycle.project.deleted 事件；
// 任务、子任务、时间线和成员由外键级联删除
func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	defer observe("delete", "projects")()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var title, status string
	err = tx.QueryRow(ctx, `DELETE FROM projects WHERE id = $1 RETURNING title, status`, id).Scan(&title, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}

	payload := contractsmq.ProjectDeletedPayload{
		TraceID:   trace.FromContext(ctx),
		ProjectID: id,
		Title:     title,
		Status:    status,
		DeletedAt: time.Now().UTC(),
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outbox, "project", int64(id), contractsmq.RoutingKeyProjectDeleted, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit project delete: %w", err)
	}
	r.logger.Info("Project deleted", zap.Int("project_id", id))
	return nil
}

func (r *ProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	defer observe("select", "projects")()
	return r.query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
}

func (r *ProjectRepository) ListForMember(ctx context.Context, userID int) ([]model.Project, error) {
	defer observe("select", "projects")()
	return r.query(ctx, `
		SELECT p.id, p.title, p.description, p.start_date, p.end_date, p.status, p.created_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.id
	`, userID)
}

func (r *ProjectRepository) query(ctx context.Context, sql string, args ...any) ([]model.Project, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}
