package model

import "time"

type MessageType string

const (
	MessageUpdate       MessageType = "update"
	MessageAnnouncement MessageType = "announcement"
	MessageMilestone    MessageType = "milestone"
	MessageQuestion     MessageType = "question"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageUpdate, MessageAnnouncement, MessageMilestone, MessageQuestion:
		return true
	}
	return false
}

type TimelineMessage struct {
	ID         int         `json:"id"`
	ProjectID  int         `json:"project_id"`
	AuthorID   int         `json:"author_id"`
	AuthorName string      `json:"author_name,omitempty"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Pinned     bool        `json:"pinned"`
	CreatedAt  time.Time   `json:"created_at"`
}

type TimelineReply struct {
	ID        int       `json:"id"`
	MessageID int       `json:"message_id"`
	AuthorID  int       `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
