package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trello-project/microservices/tasks-service/models"
	"trello-project/microservices/tasks-service/repositories"
)

func TestComposeTask(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	task := f.addTask(t, models.Task{CreatedByID: "owner", DueDate: &due})
	subtasks := f.addSubtasks(t, task.ID, true, false)
	require.NoError(t, f.store.ReplaceAssignees(f.ctx, repositories.TaskAssignees, task.ID, []string{"A"}))
	require.NoError(t, f.store.ReplaceAssignees(f.ctx, repositories.SubtaskAssignees, subtasks[0].ID, []string{"B", "C"}))
	require.NoError(t, f.store.CreateComment(f.ctx, &models.Comment{TaskID: task.ID, AuthorID: "A", Content: "first"}))
	require.NoError(t, f.store.CreateComment(f.ctx, &models.Comment{TaskID: task.ID, AuthorID: "deleted-user", Content: "second"}))
	require.NoError(t, f.store.CreateComment(f.ctx, &models.Comment{TaskID: task.ID, SubtaskID: subtasks[1].ID, AuthorID: "B", Content: "on subtask"}))

	view, err := NewComposer(f.store).ComposeTask(f.ctx, f.task(t, task.ID))
	require.NoError(t, err)

	assert.Equal(t, models.UserSummary{ID: "owner", Name: "Olga Owner", Initials: "OO"}, view.CreatedBy)
	assert.Equal(t, []models.UserSummary{{ID: "A", Name: "Alice", Initials: "A"}}, view.Assignees)
	require.NotNil(t, view.DueDate)
	assert.Equal(t, "2024-07-01T12:00:00.000Z", *view.DueDate)
	assert.Nil(t, view.StartDate)
	assert.Equal(t, 1, view.SubtasksCompleted)
	assert.Equal(t, 2, view.TotalSubtasks)

	require.Len(t, view.Comments, 2)
	assert.Equal(t, "first", view.Comments[0].Content)
	assert.Equal(t, "Alice", view.Comments[0].Author.Name)
	assert.Equal(t, models.UnknownUser("deleted-user"), view.Comments[1].Author)

	require.Len(t, view.Subtasks, 2)
	assert.Len(t, view.Subtasks[0].Assignees, 2)
	assert.Empty(t, view.Subtasks[0].Comments)
	require.Len(t, view.Subtasks[1].Comments, 1)
	assert.Equal(t, "on subtask", view.Subtasks[1].Comments[0].Content)
}

func TestComposeTask_MissingCreatorAndDates(t *testing.T) {
	f := newFixture(t)
	task := &models.Task{ID: "ghost-task", ProjectID: f.project.ID, Title: "Orphan", CreatedByID: "gone"}

	c := NewComposer(f.store)
	c.now = func() time.Time { return fixedNow }
	view, err := c.ComposeTask(f.ctx, task)
	require.NoError(t, err)

	assert.Equal(t, models.UserSummary{ID: "gone", Name: "Unknown User", Initials: "?"}, view.CreatedBy)
	assert.Equal(t, "2024-05-14T09:30:00.000Z", view.CreatedAt)
	assert.Equal(t, "2024-05-14T09:30:00.000Z", view.UpdatedAt)
	assert.NotNil(t, view.Subtasks)
	assert.NotNil(t, view.Assignees)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"startDate", "dueDate", "completedAt", "approvedAt"} {
		assert.NotContains(t, decoded, key, "optional dates are omitted, not null")
	}
	assert.Equal(t, []any{}, decoded["subtasks"])
}
