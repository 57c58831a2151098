package service

import (
	"context"

	"go.uber.org/zap"

	"watchdog/pkg/logger"
	"watchdog/pkg/metrics"
)

// UnitOfWork 先提交实体变更，再追加审计消息。
// 审计失败时变更保留：记录告警和指标，调用仍然成功。
type UnitOfWork struct {
	logger *zap.Logger
}

func NewUnitOfWork(logger *zap.Logger) *UnitOfWork {
	return &UnitOfWork{logger: logger}
}

func (u *UnitOfWork) Run(ctx context.Context, op string, mutate, audit func(context.Context) error) error {
	if err := mutate(ctx); err != nil {
		return err
	}
	if audit == nil {
		return nil
	}
	if err := audit(ctx); err != nil {
		metrics.IncrementAuditAppendFailure(op)
		logger.WithTrace(ctx, u.logger).Warn("Audit append failed after committed mutation",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
	return nil
}
