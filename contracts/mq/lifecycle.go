package mq

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	RoutingKeyTimelineAppended = "lifecycle.timeline.appended"
	RoutingKeyProjectDeleted   = "lifecycle.project.deleted"

	// BindingKeyLifecycle 匹配全部生命周期事件
	BindingKeyLifecycle = "lifecycle.#"
)

type TimelineAppendedPayload struct {
	TraceID   string    `json:"trace_id,omitempty"`
	MessageID int       `json:"message_id"`
	ProjectID int       `json:"project_id"`
	AuthorID  int       `json:"author_id"`
	Type      string    `json:"type"`
	Pinned    bool      `json:"pinned"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectDeletedPayload 项目删除后仅存的记录
type ProjectDeletedPayload struct {
	TraceID   string    `json:"trace_id,omitempty"`
	ProjectID int       `json:"project_id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	DeletedAt time.Time `json:"deleted_at"`
}

// AggregateID 取出事件对应的实体 id，用作去重键
func AggregateID(routingKey string, body []byte) (int, error) {
	switch routingKey {
	case RoutingKeyTimelineAppended:
		var p TimelineAppendedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return 0, err
		}
		return p.MessageID, nil
	case RoutingKeyProjectDeleted:
		var p ProjectDeletedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return 0, err
		}
		return p.ProjectID, nil
	default:
		return 0, fmt.Errorf("unknown routing key %q", routingKey)
	}
}
