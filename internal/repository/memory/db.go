// Package memory 进程内的存储实现，用于测试和服务端的 memory 模式
package memory

import (
	"sort"
	"sync"
	"time"

	"watchdog/internal/model"
	"watchdog/internal/repository"
)

type memberKey struct {
	projectID int
	userID    int
}

// DB 所有表共用一把锁，级联删除在同一临界区内完成
type DB struct {
	mu  sync.RWMutex
	now func() time.Time

	projects    *table[model.Project]
	tasks       *table[model.Task]
	subtasks    *table[model.SubTask]
	timeline    *table[model.TimelineMessage]
	replies     *table[model.TimelineReply]
	progression *table[model.ProgressionMessage]
	users       *table[model.User]
	members     map[memberKey]model.Membership
}

func New() *DB {
	return &DB{
		now: time.Now,
		projects: newTable(
			func(e *model.Project) *int { return &e.ID },
			func(*model.Project) int { return 0 },
		),
		tasks: newTable(
			func(e *model.Task) *int { return &e.ID },
			func(e *model.Task) int { return e.ProjectID },
		),
		subtasks: newTable(
			func(e *model.SubTask) *int { return &e.ID },
			func(e *model.SubTask) int { return e.TaskID },
		),
		timeline: newTable(
			func(e *model.TimelineMessage) *int { return &e.ID },
			func(e *model.TimelineMessage) int { return e.ProjectID },
		),
		replies: newTable(
			func(e *model.TimelineReply) *int { return &e.ID },
			func(e *model.TimelineReply) int { return e.MessageID },
		),
		progression: newTable(
			func(e *model.ProgressionMessage) *int { return &e.ID },
			func(e *model.ProgressionMessage) int { return e.TaskID },
		),
		users: newTable(
			func(e *model.User) *int { return &e.ID },
			func(*model.User) int { return 0 },
		),
		members: make(map[memberKey]model.Membership),
	}
}

// Stores 返回绑定到该 DB 的全部存储
func (db *DB) Stores() repository.Stores {
	return repository.Stores{
		Projects:    &ProjectStore{db: db},
		Members:     &MembershipStore{db: db},
		Tasks:       &TaskStore{db: db},
		Subtasks:    &SubtaskStore{db: db},
		Timeline:    &TimelineStore{db: db},
		Replies:     &ReplyStore{db: db},
		Progression: &ProgressionStore{db: db},
		Users:       &UserStore{db: db},
	}
}

// table 按 id 存值拷贝，读出的也是拷贝
type table[T any] struct {
	rows   map[int]T
	nextID int
	id     func(*T) *int
	parent func(*T) int
}

func newTable[T any](id func(*T) *int, parent func(*T) int) *table[T] {
	return &table[T]{rows: make(map[int]T), id: id, parent: parent}
}

func (t *table[T]) insert(e T) int {
	t.nextID++
	*t.id(&e) = t.nextID
	t.rows[t.nextID] = e
	return t.nextID
}

func (t *table[T]) get(id int) *T {
	e, ok := t.rows[id]
	if !ok {
		return nil
	}
	return &e
}

func (t *table[T]) replace(e T) bool {
	id := *t.id(&e)
	if _, ok := t.rows[id]; !ok {
		return false
	}
	t.rows[id] = e
	return true
}

func (t *table[T]) remove(id int) {
	delete(t.rows, id)
}

func (t *table[T]) filter(keep func(*T) bool) []T {
	out := make([]T, 0)
	for _, e := range t.rows {
		if keep == nil || keep(&e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *t.id(&out[i]) < *t.id(&out[j]) })
	return out
}

func (t *table[T]) byParent(parentID int) []T {
	return t.filter(func(e *T) bool { return t.parent(e) == parentID })
}

// 以下 delete* 需要调用方持有写锁

func (db *DB) deleteTask(id int) {
	for _, s := range db.subtasks.byParent(id) {
		db.subtasks.remove(s.ID)
	}
	for _, m := range db.progression.byParent(id) {
		db.progression.remove(m.ID)
	}
	db.tasks.remove(id)
}

func (db *DB) deleteProject(id int) {
	for _, t := range db.tasks.byParent(id) {
		db.deleteTask(t.ID)
	}
	for _, m := range db.timeline.byParent(id) {
		for _, r := range db.replies.byParent(m.ID) {
			db.replies.remove(r.ID)
		}
		db.timeline.remove(m.ID)
	}
	for k := range db.members {
		if k.projectID == id {
			delete(db.members, k)
		}
	}
	db.projects.remove(id)
}
