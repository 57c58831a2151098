package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 生命周期操作计数（operation: project.create / task.update ...，outcome: ok / invalid / not_found / unauthorized / error）
	LifecycleOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_lifecycle_operations_total",
			Help: "Total number of lifecycle operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// 生命周期操作延迟（秒）
	LifecycleOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchdog_lifecycle_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	// 审计消息写入失败计数（主操作已提交）
	AuditAppendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_audit_append_failures_total",
			Help: "Audit entries that failed to append after a committed mutation",
		},
		[]string{"operation"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchdog_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_db_slow_queries_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchdog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// Outbox 事件发布计数
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_outbox_publish_total",
			Help: "Outbox events published to MQ by status",
		},
		[]string{"routing_key", "status"}, // status: sent, failed
	)

	// 归档事件计数
	ArchivedEventCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchdog_audit_archived_events_total",
			Help: "Lifecycle events archived by the worker",
		},
		[]string{"routing_key", "status"}, // status: archived, duplicate, failed
	)
)

// RecordLifecycleOperation 记录生命周期操作结果与延迟
func RecordLifecycleOperation(operation, outcome string, duration time.Duration) {
	LifecycleOperationCount.WithLabelValues(operation, outcome).Inc()
	LifecycleOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncrementAuditAppendFailure 记录审计写入失败
func IncrementAuditAppendFailure(operation string) {
	AuditAppendFailures.WithLabelValues(operation).Inc()
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(statement string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statement).Inc()
	DBQueryDuration.WithLabelValues("slow", "unknown").Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementOutboxPublish 记录 outbox 发布结果
func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}

// IncrementArchivedEvent 记录事件归档结果
func IncrementArchivedEvent(routingKey, status string) {
	ArchivedEventCount.WithLabelValues(routingKey, status).Inc()
}
