package memory

import (
	"context"
	"sort"

	"watchdog/internal/model"
)

type ProjectStore struct{ db *DB }

func (s *ProjectStore) GetByID(_ context.Context, id int) (*model.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.projects.get(id), nil
}

func (s *ProjectStore) Create(_ context.Context, p *model.Project) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := *p
	row.Tasks, row.Members, row.Timeline = nil, nil, nil
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.db.now()
	}
	p.ID = s.db.projects.insert(row)
	p.CreatedAt = row.CreatedAt
	return p.ID, nil
}

func (s *ProjectStore) Update(_ context.Context, p *model.Project) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := *p
	row.Tasks, row.Members, row.Timeline = nil, nil, nil
	return s.db.projects.replace(row), nil
}

func (s *ProjectStore) Delete(_ context.Context, id int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.deleteProject(id)
	return nil
}

func (s *ProjectStore) List(_ context.Context) ([]model.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.projects.filter(nil), nil
}

func (s *ProjectStore) ListForMember(_ context.Context, userID int) ([]model.Project, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.projects.filter(func(p *model.Project) bool {
		_, ok := s.db.members[memberKey{projectID: p.ID, userID: userID}]
		return ok
	}), nil
}

type TaskStore struct{ db *DB }

func stripTask(t model.Task) model.Task {
	t.SubTasks, t.ProgressionMessages = nil, nil
	t.Progress.Mode = model.ProgressExplicit
	return t
}

func (s *TaskStore) GetByID(_ context.Context, id int) (*model.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.tasks.get(id), nil
}

func (s *TaskStore) ListByParent(_ context.Context, projectID int) ([]model.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.tasks.byParent(projectID), nil
}

func (s *TaskStore) Create(_ context.Context, t *model.Task) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := stripTask(*t)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.db.now()
	}
	t.ID = s.db.tasks.insert(row)
	t.CreatedAt = row.CreatedAt
	return t.ID, nil
}

func (s *TaskStore) Update(_ context.Context, t *model.Task) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.tasks.replace(stripTask(*t)), nil
}

func (s *TaskStore) Delete(_ context.Context, id int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.deleteTask(id)
	return nil
}

func (s *TaskStore) ListByAssignedUser(_ context.Context, userID int) ([]model.Task, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.tasks.filter(func(t *model.Task) bool { return t.AssignedUserID == userID }), nil
}

func (s *TaskStore) ReassignInProject(_ context.Context, projectID, from, to int) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, t := range s.db.tasks.byParent(projectID) {
		if t.AssignedUserID != from {
			continue
		}
		t.AssignedUserID = to
		s.db.tasks.replace(t)
		n++
	}
	return n, nil
}

type SubtaskStore struct{ db *DB }

func (s *SubtaskStore) GetByID(_ context.Context, id int) (*model.SubTask, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.subtasks.get(id), nil
}

func (s *SubtaskStore) ListByParent(_ context.Context, taskID int) ([]model.SubTask, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.subtasks.byParent(taskID), nil
}

func (s *SubtaskStore) Create(_ context.Context, st *model.SubTask) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.db.now()
	}
	st.ID = s.db.subtasks.insert(*st)
	return st.ID, nil
}

func (s *SubtaskStore) Update(_ context.Context, st *model.SubTask) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.subtasks.replace(*st), nil
}

func (s *SubtaskStore) Delete(_ context.Context, id int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.subtasks.remove(id)
	return nil
}

type TimelineStore struct{ db *DB }

func (s *TimelineStore) GetByID(_ context.Context, id int) (*model.TimelineMessage, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.timeline.get(id), nil
}

func (s *TimelineStore) ListByParent(_ context.Context, projectID int) ([]model.TimelineMessage, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.timeline.byParent(projectID), nil
}

func (s *TimelineStore) Create(_ context.Context, m *model.TimelineMessage) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.db.now()
	}
	row := *m
	row.AuthorName = ""
	m.ID = s.db.timeline.insert(row)
	return m.ID, nil
}

// Update 只覆盖类型和置顶标记
func (s *TimelineStore) Update(_ context.Context, m *model.TimelineMessage) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	row := s.db.timeline.get(m.ID)
	if row == nil {
		return false, nil
	}
	row.Type = m.Type
	row.Pinned = m.Pinned
	return s.db.timeline.replace(*row), nil
}

type ReplyStore struct{ db *DB }

func (s *ReplyStore) ListByParent(_ context.Context, messageID int) ([]model.TimelineReply, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.replies.byParent(messageID), nil
}

func (s *ReplyStore) Create(_ context.Context, r *model.TimelineReply) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.db.now()
	}
	r.ID = s.db.replies.insert(*r)
	return r.ID, nil
}

type ProgressionStore struct{ db *DB }

func (s *ProgressionStore) ListByParent(_ context.Context, taskID int) ([]model.ProgressionMessage, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.progression.byParent(taskID), nil
}

func (s *ProgressionStore) Create(_ context.Context, m *model.ProgressionMessage) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.db.now()
	}
	m.ID = s.db.progression.insert(*m)
	return m.ID, nil
}

type UserStore struct{ db *DB }

func (s *UserStore) GetByID(_ context.Context, id int) (*model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.users.get(id), nil
}

func (s *UserStore) Create(_ context.Context, u *model.User) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.db.now()
	}
	u.ID = s.db.users.insert(*u)
	return u.ID, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	found := s.db.users.filter(func(u *model.User) bool { return u.Email == email })
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

func (s *UserStore) List(_ context.Context) ([]model.User, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.users.filter(nil), nil
}

func (s *UserStore) Count(_ context.Context) (int, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return len(s.db.users.rows), nil
}

type MembershipStore struct{ db *DB }

func (s *MembershipStore) Add(_ context.Context, projectID, userID int) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	k := memberKey{projectID: projectID, userID: userID}
	if _, ok := s.db.members[k]; ok {
		return false, nil
	}
	s.db.members[k] = model.Membership{ProjectID: projectID, UserID: userID, JoinedAt: s.db.now()}
	return true, nil
}

func (s *MembershipStore) Remove(_ context.Context, projectID, userID int) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	k := memberKey{projectID: projectID, userID: userID}
	if _, ok := s.db.members[k]; !ok {
		return false, nil
	}
	delete(s.db.members, k)
	return true, nil
}

func (s *MembershipStore) ListByProject(_ context.Context, projectID int) ([]model.Membership, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	out := make([]model.Membership, 0)
	for k, m := range s.db.members {
		if k.projectID != projectID {
			continue
		}
		if u := s.db.users.get(m.UserID); u != nil {
			m.Username = u.Username
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}
