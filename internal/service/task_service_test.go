package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchdog/internal/model"
	"watchdog/pkg/config"
)

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")

	taskID := f.newTask(t, projectID, "Design", f.member)
	task := f.task(t, taskID)
	assert.Equal(t, model.Explicit(0), task.Progress)
	assert.Equal(t, f.member.ID, task.AssignedUserID)
	assert.Equal(t, "Task 'Design' has been created", last(f.timeline(t, projectID)).Content)

	_, err := f.tasks.CreateTask(ctx, f.member, "Sneaky", projectID, f.member.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.tasks.CreateTask(ctx, f.admin, " ", projectID, f.member.ID)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.tasks.CreateTask(ctx, f.admin, "Orphan", 999, f.member.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.tasks.CreateTask(ctx, f.admin, "Ghost", projectID, 999)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: assignee does not exist", PublicMessage(err))
}

func TestUpdateTaskCompletionTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)

	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(99)}))
	assert.Nil(t, f.task(t, taskID).CompletedDate)
	assert.Equal(t, "Task 'Design' has been updated", last(f.timeline(t, projectID)).Content)

	before := len(f.timeline(t, projectID))
	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(100)}))
	task := f.task(t, taskID)
	require.NotNil(t, task.CompletedDate)
	firstCompleted := *task.CompletedDate

	msgs := f.timeline(t, projectID)
	require.Len(t, msgs, before+1)
	assert.Equal(t, model.MessageMilestone, last(msgs).Type)
	assert.False(t, last(msgs).Pinned)
	assert.Equal(t, "Task 'Design' has been completed", last(msgs).Content)

	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(100)}))
	assert.Len(t, f.timeline(t, projectID), before+1)

	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(50)}))
	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(100)}))
	task = f.task(t, taskID)
	require.NotNil(t, task.CompletedDate)
	assert.True(t, firstCompleted.Equal(*task.CompletedDate))
	assert.Equal(t, model.MessageMilestone, last(f.timeline(t, projectID)).Type)
}

func TestUpdateTaskNoChangeEmitsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)
	before := len(f.timeline(t, projectID))

	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{}))
	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(0), Remarks: strPtr("")}))
	assert.Len(t, f.timeline(t, projectID), before)

	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Remarks: strPtr("blocked on copy")}))
	assert.Len(t, f.timeline(t, projectID), before+1)
	assert.Equal(t, "blocked on copy", f.task(t, taskID).Remarks)
}

func TestUpdateTaskValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)

	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(101)}), ErrValidation)
	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(-1)}), ErrValidation)
	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{AssignedUserID: intPtr(999)}), ErrValidation)
	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.member, 999, TaskUpdate{Percentage: intPtr(5)}), ErrNotFound)
	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.other, taskID, TaskUpdate{Percentage: intPtr(5)}), ErrUnauthorized)

	_, err := f.subtasks.CreateSubtask(ctx, f.member, "Wireframe", taskID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.admin, taskID, TaskUpdate{Percentage: intPtr(40)}), ErrValidation)
}

func TestUpdateTaskReassign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)

	require.NoError(t, f.tasks.UpdateTask(ctx, f.admin, taskID, TaskUpdate{AssignedUserID: intPtr(f.other.ID)}))
	assert.Equal(t, f.other.ID, f.task(t, taskID).AssignedUserID)

	assert.ErrorIs(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Remarks: strPtr("x")}), ErrUnauthorized)

	mine, err := f.tasks.ListByAssignedUser(ctx, f.other.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, taskID, mine[0].ID)
}

func TestRollUpWithoutSubtasksKeepsExplicitValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)
	require.NoError(t, f.tasks.UpdateTask(ctx, f.member, taskID, TaskUpdate{Percentage: intPtr(40)}))
	before := len(f.timeline(t, projectID))

	require.NoError(t, f.tasks.RollUp(ctx, f.member, taskID))

	assert.Equal(t, model.Explicit(40), f.task(t, taskID).Progress)
	assert.Len(t, f.timeline(t, projectID), before)
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.LifecycleConfig{})
	projectID := f.newProject(t, "Launch")
	taskID := f.newTask(t, projectID, "Design", f.member)

	assert.ErrorIs(t, f.tasks.DeleteTask(ctx, f.other, taskID), ErrUnauthorized)
	require.NoError(t, f.tasks.DeleteTask(ctx, f.member, taskID))

	task, err := f.tasks.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Equal(t, "Task 'Design' has been deleted", last(f.timeline(t, projectID)).Content)

	assert.ErrorIs(t, f.tasks.DeleteTask(ctx, f.member, taskID), ErrNotFound)
}
