package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPatch_DistinguishesAbsentNullAndValue(t *testing.T) {
	var patch TaskPatch
	body := `{"title":"new title","dueDate":null,"progress":40,"assigneeIds":["a","b"]}`
	require.NoError(t, json.Unmarshal([]byte(body), &patch))

	title, ok := patch.Title.Value()
	assert.True(t, ok)
	assert.Equal(t, "new title", title)

	assert.True(t, patch.DueDate.Present())
	assert.True(t, patch.DueDate.IsNull())
	_, ok = patch.DueDate.Value()
	assert.False(t, ok)

	assert.False(t, patch.Description.Present())
	assert.False(t, patch.Status.Present())

	progress, ok := patch.Progress.Value()
	assert.True(t, ok)
	assert.Equal(t, 40, progress)

	ids, ok := patch.AssigneeIDs.Value()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestField_RejectsWrongType(t *testing.T) {
	var patch TaskPatch
	err := json.Unmarshal([]byte(`{"progress":"lots"}`), &patch)
	assert.Error(t, err)
}

func TestChanges_SetReplacesAndApplies(t *testing.T) {
	var changes Changes
	changes.Set(ColTitle, "a")
	changes.Set(ColTitle, "b")
	changes.Set(ColCompletedAt, nil)
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	changes.Set(ColDueDate, due)
	changes.Set(ColProgress, 75)

	require.Len(t, changes, 4)

	completed := time.Now()
	task := Task{Title: "orig", CompletedAt: &completed}
	changes.ApplyTask(&task)

	assert.Equal(t, "b", task.Title)
	assert.Nil(t, task.CompletedAt)
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(due))
	assert.Equal(t, 75, task.Progress)
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "AL", Initials("ada lovelace"))
	assert.Equal(t, "G", Initials("Grace"))
	assert.Equal(t, "JR", Initials("John Ronald Tolkien"))
	assert.Equal(t, "?", Initials("  "))
}

func TestApprovalNotificationType(t *testing.T) {
	assert.Equal(t, NotificationType("task_rejected"), ApprovalNotificationType(ApprovalRejected, false))
	assert.Equal(t, NotificationType("admin_task_approved"), ApprovalNotificationType(ApprovalApproved, true))
}
