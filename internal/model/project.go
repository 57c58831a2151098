package model

import "time"

type ProjectStatus string

const (
	ProjectNotStarted ProjectStatus = "not_started"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectClosed     ProjectStatus = "closed"
)

var projectStatusRank = map[ProjectStatus]int{
	ProjectNotStarted: 0,
	ProjectInProgress: 1,
	ProjectCompleted:  2,
	ProjectClosed:     3,
}

func (s ProjectStatus) Valid() bool {
	_, ok := projectStatusRank[s]
	return ok
}

// Rank 状态在 NotStarted -> InProgress -> Completed -> Closed 上的位置，未知状态为 -1
func (s ProjectStatus) Rank() int {
	if r, ok := projectStatusRank[s]; ok {
		return r
	}
	return -1
}

type Project struct {
	ID          int           `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`

	Tasks    []Task            `json:"tasks,omitempty"`
	Members  []Membership      `json:"members,omitempty"`
	Timeline []TimelineMessage `json:"timeline,omitempty"`
}

type Membership struct {
	ProjectID int       `json:"project_id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}
