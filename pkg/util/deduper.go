package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SetNXer 是 Deduper 用到的 redis 子集
type SetNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Deduper struct {
	rdb    SetNXer
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb SetNXer, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func dedupKey(handler, eventKey string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, eventKey)
}

// AcquireOnce 第一次处理返回 true，重复返回 false
func (d *Deduper) AcquireOnce(ctx context.Context, handler, eventKey string) bool {
	key := dedupKey(handler, eventKey)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// redis 不可用时不阻止处理，下游依赖唯一约束兜底
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release 处理失败时释放去重标记，允许重投
func (d *Deduper) Release(ctx context.Context, handler, eventKey string) {
	if err := d.rdb.Del(ctx, dedupKey(handler, eventKey)).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
			zap.Error(err),
		)
	}
}
