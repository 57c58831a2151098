package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"watchdog/internal/model"
)

type MembershipRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMembershipRepository(db *pgxpool.Pool, logger *zap.Logger) *MembershipRepository {
	return &MembershipRepository{db: db, logger: logger}
}

// Add 依赖主键去重，重复添加返回 false
func (r *MembershipRepository) Add(ctx context.Context, projectID, userID int) (bool, error) {
	defer observe("insert", "project_members")()

	tag, err := r.db.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("add member %d to project %d: %w", userID, projectID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MembershipRepository) Remove(ctx context.Context, projectID, userID int) (bool, error) {
	defer observe("delete", "project_members")()

	tag, err := r.db.Exec(ctx, `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("remove member %d from project %d: %w", userID, projectID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *MembershipRepository) ListByProject(ctx context.Context, projectID int) ([]model.Membership, error) {
	defer observe("select", "project_members")()

	rows, err := r.db.Query(ctx, `
		SELECT m.project_id, m.user_id, COALESCE(u.username, ''), m.joined_at
		FROM project_members m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.joined_at, m.user_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := make([]model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Username, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
