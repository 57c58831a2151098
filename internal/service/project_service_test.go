package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchdog/internal/actor"
	"watchdog/internal/model"
	"watchdog/pkg/config"
	"watchdog/pkg/rbac"
)

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})

	for _, title := range []string{"Launch", "Q3 roadmap", "  padded  "} {
		id, err := f.projects.CreateProject(ctx, f.admin, title, "desc")
		require.NoError(t, err)

		p, err := f.projects.GetProject(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, model.ProjectNotStarted, p.Status)
		assert.Nil(t, p.EndDate)
		assert.False(t, p.StartDate.IsZero())

		require.Len(t, p.Timeline, 1)
		msg := p.Timeline[0]
		assert.Equal(t, model.MessageAnnouncement, msg.Type)
		assert.True(t, msg.Pinned)
		assert.Equal(t, "Project '"+p.Title+"' has been created", msg.Content)
		assert.Equal(t, f.admin.ID, msg.AuthorID)
	}
}

func TestCreateProjectRejectsBlankTitle(t *testing.T) {
	f := newFixture(t, config.LifecycleConfig{})

	_, err := f.projects.CreateProject(context.Background(), f.admin, "   ", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProjectMutationsRequireSuperAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	actors := map[string]actor.Actor{
		"user":            f.member,
		"unauthenticated": {},
		"unknown role":    {ID: f.member.ID, Role: rbac.Role("guest")},
	}
	for name, a := range actors {
		t.Run(name, func(t *testing.T) {
			_, err := f.projects.CreateProject(ctx, a, "Other", "")
			assert.ErrorIs(t, err, ErrUnauthorized)

			assert.ErrorIs(t, f.projects.UpdateStatus(ctx, a, projectID, model.ProjectCompleted), ErrUnauthorized)
			assert.ErrorIs(t, f.projects.UpdateDetails(ctx, a, projectID, "Renamed", ""), ErrUnauthorized)

			_, err = f.projects.AddMember(ctx, a, projectID, f.other.ID)
			assert.ErrorIs(t, err, ErrUnauthorized)
			_, err = f.projects.RemoveMember(ctx, a, projectID, f.other.ID)
			assert.ErrorIs(t, err, ErrUnauthorized)

			assert.ErrorIs(t, f.projects.DeleteProject(ctx, a, projectID), ErrUnauthorized)
		})
	}

	projects, err := f.projects.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Launch", projects[0].Title)
	assert.Equal(t, model.ProjectNotStarted, projects[0].Status)

	assert.Len(t, f.timeline(t, projectID), 1)
	members, err := f.stores.Members.ListByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestUpdateStatusCompletedTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectCompleted))
	p, err := f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, p.EndDate)
	firstEnd := *p.EndDate

	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectCompleted))
	p, err = f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, p.EndDate)
	assert.True(t, firstEnd.Equal(*p.EndDate))

	msgs := f.timeline(t, projectID)
	require.Len(t, msgs, 3)
	for _, m := range msgs[1:] {
		assert.Equal(t, model.MessageMilestone, m.Type)
		assert.True(t, m.Pinned)
		assert.Equal(t, "Project 'Launch' has been marked as completed", m.Content)
	}
}

func TestUpdateStatusNonCompleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectInProgress))
	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectInProgress))

	msgs := f.timeline(t, projectID)
	require.Len(t, msgs, 3)
	assert.Equal(t, model.MessageUpdate, last(msgs).Type)
	assert.False(t, last(msgs).Pinned)
	assert.Equal(t, "Project 'Launch' status changed to in_progress", last(msgs).Content)

	p, err := f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectInProgress, p.Status)
	assert.Nil(t, p.EndDate)
}

func TestUpdateStatusValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	assert.ErrorIs(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectStatus("archived")), ErrValidation)
	assert.ErrorIs(t, f.projects.UpdateStatus(ctx, f.admin, 999, model.ProjectCompleted), ErrNotFound)
	assert.Len(t, f.timeline(t, projectID), 1)
}

func TestUpdateStatusBackwardsAllowedByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectCompleted))
	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectNotStarted))

	p, err := f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectNotStarted, p.Status)
	assert.NotNil(t, p.EndDate)
}

func TestUpdateStatusMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{EnforceMonotonicStatus: true})
	projectID := f.newProject(t, "Launch")

	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectCompleted))
	err := f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectNotStarted)
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectCompleted))
	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectClosed))

	p, err := f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectClosed, p.Status)
	assert.Len(t, f.timeline(t, projectID), 4)
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	require.NoError(t, f.projects.UpdateDetails(ctx, f.admin, projectID, "Launch v2", "new scope"))

	p, err := f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "Launch v2", p.Title)
	assert.Equal(t, "new scope", p.Description)
	assert.Equal(t, model.ProjectNotStarted, p.Status)
	assert.Equal(t, "Project 'Launch v2' details have been updated", last(f.timeline(t, projectID)).Content)

	assert.ErrorIs(t, f.projects.UpdateDetails(ctx, f.admin, projectID, "", ""), ErrValidation)
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)
	_, err := f.subtasks.CreateSubtask(ctx, f.member, "Wireframe", taskID)
	require.NoError(t, err)

	require.NoError(t, f.projects.DeleteProject(ctx, f.admin, projectID))

	p, err := f.projects.GetProject(ctx, projectID)
	require.NoError(t, err)
	assert.Nil(t, p)
	task, err := f.tasks.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Empty(t, f.timeline(t, projectID))

	assert.ErrorIs(t, f.projects.DeleteProject(ctx, f.admin, projectID), ErrNotFound)
}

func TestAddMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	added, err := f.projects.AddMember(ctx, f.admin, projectID, f.member.ID)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "alice has been added to the project", last(f.timeline(t, projectID)).Content)

	added, err = f.projects.AddMember(ctx, f.admin, projectID, f.member.ID)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, f.timeline(t, projectID), 2)

	added, err = f.projects.AddMember(ctx, f.admin, projectID, 404)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, added)
	assert.Len(t, f.timeline(t, projectID), 2)
	members, err := f.stores.Members.ListByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, members, 1)

	_, err = f.projects.AddMember(ctx, f.admin, 999, f.member.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	mine, err := f.projects.ListProjectsForUser(ctx, f.member.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, projectID, mine[0].ID)
}

func TestRemoveMemberReassignsTasksInProjectOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	launch := f.newProject(t, "Launch")
	other := f.newProject(t, "Other")
	_, err := f.projects.AddMember(ctx, f.admin, launch, f.member.ID)
	require.NoError(t, err)

	design := f.newTask(t, launch, "Design", f.member)
	copyTask := f.newTask(t, launch, "Copy", f.other)
	elsewhere := f.newTask(t, other, "Elsewhere", f.member)

	removed, err := f.projects.RemoveMember(ctx, f.admin, launch, f.member.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, f.admin.ID, f.task(t, design).AssignedUserID)
	assert.Equal(t, f.other.ID, f.task(t, copyTask).AssignedUserID)
	assert.Equal(t, f.member.ID, f.task(t, elsewhere).AssignedUserID)

	msg := last(f.timeline(t, launch))
	assert.Equal(t, "A team member has been removed from the project", msg.Content)
	assert.Equal(t, model.MessageUpdate, msg.Type)

	before := len(f.timeline(t, launch))
	removed, err = f.projects.RemoveMember(ctx, f.admin, launch, f.member.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, f.timeline(t, launch), before)
}

func TestRemoveMemberReassignsTasksOfNonMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	launch := f.newProject(t, "Launch")
	design := f.newTask(t, launch, "Design", f.member)
	before := len(f.timeline(t, launch))

	removed, err := f.projects.RemoveMember(ctx, f.admin, launch, f.member.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, f.admin.ID, f.task(t, design).AssignedUserID)

	entries := f.timeline(t, launch)
	require.Len(t, entries, before+1)
	assert.Equal(t, "Tasks have been reassigned from a former team member", last(entries).Content)
	assert.Equal(t, model.MessageUpdate, last(entries).Type)

	removed, err = f.projects.RemoveMember(ctx, f.admin, launch, f.member.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Len(t, f.timeline(t, launch), before+1)
}

func TestMembershipMessages(t *testing.T) {
	assert.Equal(t, "alice has been added to the project", memberAddedMessage(&model.User{Username: "alice"}))
	assert.Equal(t, "A new team member has been added to the project", memberAddedMessage(&model.User{Username: " "}))

	assert.Equal(t, "A team member has been removed from the project", removalMessage(true, 0))
	assert.Equal(t, "A team member has been removed from the project", removalMessage(true, 3))
	assert.Equal(t, "Tasks have been reassigned from a former team member", removalMessage(false, 2))
	assert.Empty(t, removalMessage(false, 0))
}

func TestGetProjectAssemblesAggregate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	_, err := f.projects.AddMember(ctx, f.admin, projectID, f.member.ID)
	require.NoError(t, err)
	taskID := f.newTask(t, projectID, "Design", f.member)
	_, err = f.subtasks.CreateSubtask(ctx, f.member, "Wireframe", taskID)
	require.NoError(t, err)

	p, err := f.projects.GetProject(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Len(t, p.Tasks, 1)
	assert.Len(t, p.Tasks[0].SubTasks, 1)
	assert.True(t, p.Tasks[0].Progress.IsDerived())
	require.Len(t, p.Members, 1)
	assert.Equal(t, "alice", p.Members[0].Username)
	assert.Len(t, p.Timeline, 3)

	missing, err := f.projects.GetProject(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	stores := newMemoryStores()
	stores.Timeline = failingTimeline{stores.Timeline}
	f := newFixtureWithStores(t, stores, config.LifecycleConfig{})

	projectID, err := f.projects.CreateProject(ctx, f.admin, "Launch", "")
	require.NoError(t, err)
	require.NoError(t, f.projects.UpdateStatus(ctx, f.admin, projectID, model.ProjectCompleted))

	p, err := f.stores.Projects.GetByID(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.ProjectCompleted, p.Status)
	assert.Empty(t, f.timeline(t, projectID))
}
