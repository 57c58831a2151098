package repository

import (
	"context"

	"watchdog/internal/model"
)

// Reader 按 id 读取，不存在时返回 (nil, nil)
type Reader[T any] interface {
	GetByID(ctx context.Context, id int) (*T, error)
}

// ParentLister 按父实体 id 列出，按创建顺序排列
type ParentLister[T any] interface {
	ListByParent(ctx context.Context, parentID int) ([]T, error)
}

// Creator 写入新实体并返回分配的 id
type Creator[T any] interface {
	Create(ctx context.Context, e *T) (int, error)
}

// Updater 整体覆盖已有实体，实体不存在时返回 false
type Updater[T any] interface {
	Update(ctx context.Context, e *T) (bool, error)
}

type Deleter interface {
	Delete(ctx context.Context, id int) error
}

// Store 通用实体存储
type Store[T any] interface {
	Reader[T]
	ParentLister[T]
	Creator[T]
	Updater[T]
	Deleter
}

// ProjectStore 项目没有父实体；Delete 级联删除任务、子任务、时间线和成员
type ProjectStore interface {
	Reader[model.Project]
	Creator[model.Project]
	Updater[model.Project]
	Deleter
	List(ctx context.Context) ([]model.Project, error)
	ListForMember(ctx context.Context, userID int) ([]model.Project, error)
}

// TaskStore 的父实体是项目
type TaskStore interface {
	Store[model.Task]
	ListByAssignedUser(ctx context.Context, userID int) ([]model.Task, error)
	// ReassignInProject 把项目内 from 的任务改派给 to，返回受影响行数
	ReassignInProject(ctx context.Context, projectID, from, to int) (int, error)
}

// SubtaskStore 的父实体是任务
type SubtaskStore interface {
	Store[model.SubTask]
}

// TimelineStore 只追加；Update 仅用于重新分类
type TimelineStore interface {
	Reader[model.TimelineMessage]
	ParentLister[model.TimelineMessage]
	Creator[model.TimelineMessage]
	Updater[model.TimelineMessage]
}

type ReplyStore interface {
	ParentLister[model.TimelineReply]
	Creator[model.TimelineReply]
}

type ProgressionStore interface {
	ParentLister[model.ProgressionMessage]
	Creator[model.ProgressionMessage]
}

type UserStore interface {
	Reader[model.User]
	Creator[model.User]
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int, error)
}

// MembershipStore 以 (project_id, user_id) 唯一
type MembershipStore interface {
	// Add 已是成员时返回 false
	Add(ctx context.Context, projectID, userID int) (bool, error)
	Remove(ctx context.Context, projectID, userID int) (bool, error)
	ListByProject(ctx context.Context, projectID int) ([]model.Membership, error)
}

// Stores 一套完整的存储实现
type Stores struct {
	Projects    ProjectStore
	Members     MembershipStore
	Tasks       TaskStore
	Subtasks    SubtaskStore
	Timeline    TimelineStore
	Replies     ReplyStore
	Progression ProgressionStore
	Users       UserStore
}
