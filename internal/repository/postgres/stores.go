package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"watchdog/internal/repository"
	"watchdog/pkg/metrics"
	"watchdog/pkg/outbox"
)

// NewStores 基于同一个连接池构建全部存储
func NewStores(db *pgxpool.Pool, logger *zap.Logger) repository.Stores {
	ob := outbox.NewRepository(db)
	return repository.Stores{
		Projects:    NewProjectRepository(db, ob, logger),
		Members:     NewMembershipRepository(db, logger),
		Tasks:       NewTaskRepository(db, logger),
		Subtasks:    NewSubtaskRepository(db, logger),
		Timeline:    NewTimelineRepository(db, ob, logger),
		Replies:     NewReplyRepository(db, logger),
		Progression: NewProgressionRepository(db, logger),
		Users:       NewUserRepository(db, logger),
	}
}

// observe 记录一次查询耗时，用法：defer observe("select", "tasks")()
func observe(operation, table string) func() {
	start := time.Now()
	return func() {
		metrics.RecordDBQueryDuration(operation, table, time.Since(start))
	}
}
