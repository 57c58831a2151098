package model

import "time"

type ProgressMode string

const (
	// ProgressExplicit 没有子任务，百分比由调用方设置
	ProgressExplicit ProgressMode = "explicit"
	// ProgressDerived 由子任务完成情况计算
	ProgressDerived ProgressMode = "derived"
)

type Progress struct {
	Mode  ProgressMode `json:"mode"`
	Value int          `json:"value"`
}

func Explicit(v int) Progress { return Progress{Mode: ProgressExplicit, Value: v} }

func Derived(v int) Progress { return Progress{Mode: ProgressDerived, Value: v} }

func (p Progress) IsDerived() bool { return p.Mode == ProgressDerived }

type Task struct {
	ID             int        `json:"id"`
	ProjectID      int        `json:"project_id"`
	AssignedUserID int        `json:"assigned_user_id"`
	Description    string     `json:"description"`
	Remarks        string     `json:"remarks"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	CompletedDate  *time.Time `json:"completed_date,omitempty"`
	Progress       Progress   `json:"progress"`
	CreatedAt      time.Time  `json:"created_at"`

	SubTasks            []SubTask            `json:"subtasks,omitempty"`
	ProgressionMessages []ProgressionMessage `json:"progression_messages,omitempty"`
}

type SubTaskStatus string

const (
	SubTaskNotStarted SubTaskStatus = "not_started"
	SubTaskInProgress SubTaskStatus = "in_progress"
	SubTaskCompleted  SubTaskStatus = "completed"
	SubTaskOnHold     SubTaskStatus = "on_hold"
	SubTaskClosed     SubTaskStatus = "closed"
)

func (s SubTaskStatus) Valid() bool {
	switch s {
	case SubTaskNotStarted, SubTaskInProgress, SubTaskCompleted, SubTaskOnHold, SubTaskClosed:
		return true
	}
	return false
}

type SubTask struct {
	ID            int           `json:"id"`
	TaskID        int           `json:"task_id"`
	CreatedByID   int           `json:"created_by_id"`
	Description   string        `json:"description"`
	Status        SubTaskStatus `json:"status"`
	CompletedDate *time.Time    `json:"completed_date,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Completed 只有 completed 计入完成度
func (s SubTask) Completed() bool { return s.Status == SubTaskCompleted }

type ProgressionMessage struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	AuthorID  int       `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
