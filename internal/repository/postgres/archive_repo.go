package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ArchiveRepository 保存 worker 消费到的生命周期事件
type ArchiveRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewArchiveRepository(db *pgxpool.Pool, logger *zap.Logger) *ArchiveRepository {
	return &ArchiveRepository{db: db, logger: logger}
}

// Insert 已归档过的 (routing_key, aggregate_id) 返回 false
func (r *ArchiveRepository) Insert(ctx context.Context, routingKey string, aggregateID int, payload []byte) (bool, error) {
	defer observe("insert", "audit_archive")()

	tag, err := r.db.Exec(ctx, `
		INSERT INTO audit_archive (routing_key, aggregate_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (routing_key, aggregate_id) DO NOTHING
	`, routingKey, aggregateID, payload)
	if err != nil {
		return false, fmt.Errorf("archive %s/%d: %w", routingKey, aggregateID, err)
	}
	return tag.RowsAffected() > 0, nil
}
