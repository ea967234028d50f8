package repositories

import (
	"context"
	"errors"
	"testing"

	"trello-project/microservices/tasks-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	task := &models.Task{ProjectID: "p1", Title: "original", Status: models.StatusTodo}
	require.NoError(t, store.CreateTask(ctx, task))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		var changes models.Changes
		changes.Set(models.ColTitle, "changed")
		require.NoError(t, tx.UpdateTask(ctx, task.ID, changes))
		require.NoError(t, tx.ReplaceAssignees(ctx, TaskAssignees, task.ID, []string{"u1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)

	ids, err := store.ListAssignees(ctx, TaskAssignees, task.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_RollbackKeepsWritesMadeOutsideTx(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	task := &models.Task{ProjectID: "p1", Title: "original", Status: models.StatusTodo}
	require.NoError(t, store.CreateTask(ctx, task))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		var changes models.Changes
		changes.Set(models.ColTitle, "changed")
		require.NoError(t, tx.UpdateTask(ctx, task.ID, changes))
		require.NoError(t, tx.CreateTask(ctx, &models.Task{ID: "t-tx", ProjectID: "p1", Title: "inside"}))
		require.NoError(t, store.CreateNotification(ctx, &models.Notification{UserID: "u1", Message: "hello"}))
		require.NoError(t, store.CreateTask(ctx, &models.Task{ID: "t-outside", ProjectID: "p2", Title: "outside"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	notifications, err := store.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, notifications, 1)

	_, err = store.GetTask(ctx, "t-outside")
	assert.NoError(t, err)

	_, err = store.GetTask(ctx, "t-tx")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)
}

func TestMemoryStore_RollbackRestoresDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	task := &models.Task{ProjectID: "p1", Title: "keep me"}
	require.NoError(t, store.CreateTask(ctx, task))
	require.NoError(t, store.CreateSubtask(ctx, &models.Subtask{TaskID: task.ID, Title: "s1"}))
	require.NoError(t, store.ReplaceAssignees(ctx, TaskAssignees, task.ID, []string{"u1", "u2"}))

	err := store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		require.NoError(t, tx.DeleteSubtasksByTask(ctx, task.ID))
		require.NoError(t, tx.DeleteAssignees(ctx, TaskAssignees, task.ID))
		require.NoError(t, tx.DeleteTask(ctx, task.ID))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	subtasks, err := store.ListSubtasksByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, subtasks, 1)
	ids, err := store.ListAssignees(ctx, TaskAssignees, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, ids)
}

func TestMemoryStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	project := &models.Project{Name: "p"}
	require.NoError(t, store.CreateProject(ctx, project))

	err := store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.UpdateProjectProgress(ctx, project.ID, 42)
	})
	require.NoError(t, err)

	got, err := store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Progress)
}

func TestMemoryStore_ReplaceAssigneesDeduplicates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.ReplaceAssignees(ctx, TaskAssignees, "t1", []string{"a", "b", "a", ""}))
	ids, err := store.ListAssignees(ctx, TaskAssignees, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, store.ReplaceAssignees(ctx, TaskAssignees, "t1", nil))
	ids, err = store.ListAssignees(ctx, TaskAssignees, "t1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	err = store.UpdateSubtask(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_WhichUsersExist(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateUser(ctx, &models.User{ID: "a", Name: "A"}))
	require.NoError(t, store.CreateUser(ctx, &models.User{ID: "b", Name: "B"}))

	known, err := store.WhichUsersExist(ctx, []string{"a", "z", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "b": true}, known)
}

func TestMemoryStore_CommentsSeparateTaskAndSubtask(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateComment(ctx, &models.Comment{TaskID: "t1", Content: "first"}))
	require.NoError(t, store.CreateComment(ctx, &models.Comment{TaskID: "t1", SubtaskID: "s1", Content: "on subtask"}))
	require.NoError(t, store.CreateComment(ctx, &models.Comment{TaskID: "t1", Content: "second"}))

	taskComments, err := store.ListTaskComments(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, taskComments, 2)
	assert.Equal(t, "first", taskComments[0].Content)
	assert.Equal(t, "second", taskComments[1].Content)

	subComments, err := store.ListSubtaskComments(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, subComments, 1)

	require.NoError(t, store.DeleteSubtaskComments(ctx, "s1"))
	subComments, err = store.ListSubtaskComments(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, subComments)
}

func TestMemoryStore_MarkNotificationReadOnlyForRecipient(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	n := &models.Notification{UserID: "u1", Type: models.NotificationTaskAssigned}
	require.NoError(t, store.CreateNotification(ctx, n))

	assert.ErrorIs(t, store.MarkNotificationRead(ctx, "u2", n.ID), ErrNotFound)
	require.NoError(t, store.MarkNotificationRead(ctx, "u1", n.ID))

	list, err := store.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}
