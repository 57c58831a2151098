package mqhandler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	contractsmq "watchdog/contracts/mq"
	"watchdog/pkg/logger"
	"watchdog/pkg/metrics"
	"watchdog/pkg/mq"
	"watchdog/pkg/util"
)

const archiveHandlerName = "audit_archive"

// Archiver 写入归档表，已存在时返回 false
type Archiver interface {
	Insert(ctx context.Context, routingKey string, aggregateID int, payload []byte) (bool, error)
}

// ArchiveHandler 把生命周期事件写入 audit_archive。
// Redis 去重挡住重复投递，唯一约束兜底。
type ArchiveHandler struct {
	archive    Archiver
	deduper    *util.Deduper
	retries    *util.RetryCounter
	maxRetries int64
	logger     *zap.Logger
}

func NewArchiveHandler(archive Archiver, deduper *util.Deduper, retries *util.RetryCounter, maxRetries int64, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive:    archive,
		deduper:    deduper,
		retries:    retries,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (h *ArchiveHandler) Handle(ctx context.Context, d mq.Delivery) error {
	log := logger.WithTrace(ctx, h.logger).With(zap.String("routing_key", d.RoutingKey))

	aggregateID, err := contractsmq.AggregateID(d.RoutingKey, d.Body)
	if err != nil {
		log.Error("Failed to decode lifecycle event", zap.Error(err))
		metrics.IncrementArchivedEvent(d.RoutingKey, "invalid")
		return fmt.Errorf("%w: %v", mq.ErrDiscard, err)
	}

	eventKey := fmt.Sprintf("%s:%d", d.RoutingKey, aggregateID)
	if !h.deduper.AcquireOnce(ctx, archiveHandlerName, eventKey) {
		metrics.IncrementArchivedEvent(d.RoutingKey, "duplicate")
		return nil
	}

	inserted, err := h.archive.Insert(ctx, d.RoutingKey, aggregateID, d.Body)
	if err != nil {
		h.deduper.Release(ctx, archiveHandlerName, eventKey)
		return h.retryOrDiscard(ctx, log, d.RoutingKey, eventKey, err)
	}

	if err := h.retries.Reset(ctx, util.FormatRetryKey(archiveHandlerName, eventKey)); err != nil {
		log.Warn("Failed to reset retry counter", zap.Error(err))
	}

	status := "archived"
	if !inserted {
		status = "duplicate"
	}
	metrics.IncrementArchivedEvent(d.RoutingKey, status)
	log.Info("Lifecycle event archived",
		zap.Int("aggregate_id", aggregateID),
		zap.String("status", status),
	)
	return nil
}

// retryOrDiscard 可重试错误重新入队，超过次数或不可重试时进入死信
func (h *ArchiveHandler) retryOrDiscard(ctx context.Context, log *zap.Logger, routingKey, eventKey string, err error) error {
	retryable, kind := util.IsRetryableError(err)
	retryKey := util.FormatRetryKey(archiveHandlerName, eventKey)

	count, cerr := h.retries.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		log.Warn("Retry counter unavailable", zap.Error(cerr))
	}

	if !util.ShouldRetry(count, h.maxRetries, retryable) {
		log.Error("Discarding lifecycle event",
			zap.String("error_kind", kind),
			zap.Int64("attempt", count),
			zap.Error(err),
		)
		metrics.IncrementArchivedEvent(routingKey, "failed")
		_ = h.retries.Reset(ctx, retryKey)
		return fmt.Errorf("%w: %s: %v", mq.ErrDiscard, kind, err)
	}

	metrics.IncrementArchivedEvent(routingKey, "retry")
	log.Warn("Archive failed, requeueing",
		zap.String("error_kind", kind),
		zap.Int64("attempt", count),
		zap.Error(err),
	)
	return err
}
