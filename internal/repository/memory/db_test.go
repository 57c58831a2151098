package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchdog/internal/model"
)

func TestStores_GetByIDAbsentReturnsNil(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	p, err := st.Projects.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, p)

	task, err := st.Tasks.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestStores_ReturnsCopies(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	id, err := st.Projects.Create(ctx, &model.Project{Title: "Launch", Status: model.ProjectNotStarted})
	require.NoError(t, err)

	p, _ := st.Projects.GetByID(ctx, id)
	p.Title = "changed"

	again, _ := st.Projects.GetByID(ctx, id)
	assert.Equal(t, "Launch", again.Title)
}

func TestStores_UpdateMissingReturnsFalse(t *testing.T) {
	st := New().Stores()
	ok, err := st.Tasks.Update(context.Background(), &model.Task{ID: 5})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProjectDeleteCascades(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	pid, _ := st.Projects.Create(ctx, &model.Project{Title: "Launch"})
	tid, _ := st.Tasks.Create(ctx, &model.Task{ProjectID: pid, Description: "Design"})
	sid, _ := st.Subtasks.Create(ctx, &model.SubTask{TaskID: tid, Description: "Wireframe"})
	mid, _ := st.Timeline.Create(ctx, &model.TimelineMessage{ProjectID: pid, Content: "hi", Type: model.MessageUpdate})
	_, _ = st.Replies.Create(ctx, &model.TimelineReply{MessageID: mid, Content: "hello"})
	_, _ = st.Members.Add(ctx, pid, 7)

	require.NoError(t, st.Projects.Delete(ctx, pid))

	task, _ := st.Tasks.GetByID(ctx, tid)
	assert.Nil(t, task)
	sub, _ := st.Subtasks.GetByID(ctx, sid)
	assert.Nil(t, sub)
	msg, _ := st.Timeline.GetByID(ctx, mid)
	assert.Nil(t, msg)
	replies, _ := st.Replies.ListByParent(ctx, mid)
	assert.Empty(t, replies)
	members, _ := st.Members.ListByProject(ctx, pid)
	assert.Empty(t, members)
}

func TestMembershipAddIsIdempotent(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	added, err := st.Members.Add(ctx, 1, 7)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = st.Members.Add(ctx, 1, 7)
	require.NoError(t, err)
	assert.False(t, added)

	members, _ := st.Members.ListByProject(ctx, 1)
	assert.Len(t, members, 1)

	removed, _ := st.Members.Remove(ctx, 1, 7)
	assert.True(t, removed)
	removed, _ = st.Members.Remove(ctx, 1, 7)
	assert.False(t, removed)
}

func TestReassignInProject(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	a, _ := st.Tasks.Create(ctx, &model.Task{ProjectID: 1, AssignedUserID: 7})
	b, _ := st.Tasks.Create(ctx, &model.Task{ProjectID: 1, AssignedUserID: 8})
	c, _ := st.Tasks.Create(ctx, &model.Task{ProjectID: 2, AssignedUserID: 7})

	n, err := st.Tasks.ReassignInProject(ctx, 1, 7, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ta, _ := st.Tasks.GetByID(ctx, a)
	tb, _ := st.Tasks.GetByID(ctx, b)
	tc, _ := st.Tasks.GetByID(ctx, c)
	assert.Equal(t, 1, ta.AssignedUserID)
	assert.Equal(t, 8, tb.AssignedUserID)
	assert.Equal(t, 7, tc.AssignedUserID)
}

func TestTimelineUpdateOnlyReclassifies(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	id, _ := st.Timeline.Create(ctx, &model.TimelineMessage{ProjectID: 1, Content: "original", Type: model.MessageUpdate})
	ok, err := st.Timeline.Update(ctx, &model.TimelineMessage{ID: id, Content: "edited", Type: model.MessageMilestone, Pinned: true})
	require.NoError(t, err)
	require.True(t, ok)

	m, _ := st.Timeline.GetByID(ctx, id)
	assert.Equal(t, "original", m.Content)
	assert.Equal(t, model.MessageMilestone, m.Type)
	assert.True(t, m.Pinned)
}

func TestListByParentOrdersByID(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()
	for _, d := range []string{"a", "b", "c"} {
		_, _ = st.Subtasks.Create(ctx, &model.SubTask{TaskID: 4, Description: d})
	}
	_, _ = st.Subtasks.Create(ctx, &model.SubTask{TaskID: 5, Description: "other"})

	subs, err := st.Subtasks.ListByParent(ctx, 4)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "a", subs[0].Description)
	assert.Equal(t, "c", subs[2].Description)
}
