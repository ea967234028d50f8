package services

import (
	"strings"
	"time"

	"trello-project/microservices/tasks-service/models"
)

// ApprovalTransition records an approvalStatus change made by a request.
type ApprovalTransition struct {
	From models.ApprovalStatus
	To   models.ApprovalStatus
}

// TaskDelta is the validated, side-effect-complete change set for one task update.
type TaskDelta struct {
	Changes  models.Changes
	Approval *ApprovalTransition
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate accepts ISO-8601 date or date-time strings. An empty string
// clears the field.
func ParseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ValidationError("invalid date for %s: %q", field, raw)
}

// dateChange converts a tri-state date field into a column value; nil clears.
func dateChange(field string, f models.Field[string]) (any, error) {
	raw, ok := f.Value()
	if !ok {
		return nil, nil
	}
	t, err := ParseDate(field, raw)
	if err != nil || t == nil {
		return nil, err
	}
	return *t, nil
}

// BuildTaskDelta validates patch against current and applies the status and
// approval side effects. subtaskCount decides whether leaving done resets
// progress.
func BuildTaskDelta(current *models.Task, patch models.TaskPatch, subtaskCount int, actor models.Principal, now time.Time) (TaskDelta, error) {
	var delta TaskDelta
	c := &delta.Changes

	if patch.Title.Present() {
		title, _ := patch.Title.Value()
		if strings.TrimSpace(title) == "" {
			return delta, ValidationError("title cannot be empty")
		}
		c.Set(models.ColTitle, title)
	}
	if patch.Description.Present() {
		description, _ := patch.Description.Value()
		c.Set(models.ColDescription, description)
	}

	statusChanged := false
	if patch.Status.Present() {
		status, ok := patch.Status.Value()
		if !ok || !status.Valid() {
			return delta, ValidationError("invalid status %q", status)
		}
		c.Set(models.ColStatus, string(status))
		statusChanged = status != current.Status
	}
	if patch.Priority.Present() {
		priority, ok := patch.Priority.Value()
		if !ok || !priority.Valid() {
			return delta, ValidationError("invalid priority %q", priority)
		}
		c.Set(models.ColPriority, string(priority))
	}
	if patch.Progress.Present() {
		progress, ok := patch.Progress.Value()
		if !ok || progress < 0 || progress > 100 {
			return delta, ValidationError("progress must be between 0 and 100")
		}
		c.Set(models.ColProgress, progress)
	}

	for _, d := range []struct {
		column string
		name   string
		field  models.Field[string]
	}{
		{models.ColStartDate, "startDate", patch.StartDate},
		{models.ColDueDate, "dueDate", patch.DueDate},
		{models.ColCompletedAt, "completedAt", patch.CompletedAt},
	} {
		if !d.field.Present() {
			continue
		}
		v, err := dateChange(d.name, d.field)
		if err != nil {
			return delta, err
		}
		c.Set(d.column, v)
	}

	if patch.RejectionReason.Present() {
		if reason, ok := patch.RejectionReason.Value(); ok {
			c.Set(models.ColRejectionReason, reason)
		} else {
			c.Set(models.ColRejectionReason, nil)
		}
	}

	if patch.ApprovalStatus.Present() {
		approval, ok := patch.ApprovalStatus.Value()
		if !ok || !approval.Valid() {
			return delta, ValidationError("invalid approvalStatus %q", approval)
		}
		c.Set(models.ColApprovalStatus, string(approval))
		if approval != current.ApprovalStatus {
			delta.Approval = &ApprovalTransition{From: current.ApprovalStatus, To: approval}
			applyApprovalEffects(c, delta.Approval, actor, now)
		}
	}

	if statusChanged {
		applyStatusEffects(c, current.Status, patch, subtaskCount, now)
	}

	return delta, nil
}

func applyStatusEffects(c *models.Changes, from models.TaskStatus, patch models.TaskPatch, subtaskCount int, now time.Time) {
	to, _ := patch.Status.Value()
	switch {
	case to == models.StatusDone:
		if !patch.CompletedAt.Present() {
			c.Set(models.ColCompletedAt, now)
		}
		if !patch.Progress.Present() {
			c.Set(models.ColProgress, 100)
		}
	case from == models.StatusDone:
		if !patch.CompletedAt.Present() {
			c.Set(models.ColCompletedAt, nil)
		}
		if !patch.Progress.Present() && subtaskCount == 0 {
			c.Set(models.ColProgress, 0)
		}
	}
}

func applyApprovalEffects(c *models.Changes, t *ApprovalTransition, actor models.Principal, now time.Time) {
	switch {
	case t.To == models.ApprovalApproved:
		c.Set(models.ColApprovedAt, now)
		c.Set(models.ColApprovedByID, actor.UserID)
	case t.From == models.ApprovalApproved:
		c.Set(models.ColApprovedAt, nil)
		c.Set(models.ColApprovedByID, nil)
	}
}

// BuildSubtaskChanges validates a subtask patch. Status and completed are
// independent fields and are written as given.
func BuildSubtaskChanges(patch models.SubtaskPatch) (models.Changes, error) {
	var c models.Changes

	if patch.Title.Present() {
		title, _ := patch.Title.Value()
		if strings.TrimSpace(title) == "" {
			return nil, ValidationError("title cannot be empty")
		}
		c.Set(models.ColTitle, title)
	}
	if patch.Status.Present() {
		status, ok := patch.Status.Value()
		if !ok || !status.Valid() {
			return nil, ValidationError("invalid status %q", status)
		}
		c.Set(models.ColStatus, string(status))
	}
	if patch.Completed.Present() {
		completed, ok := patch.Completed.Value()
		if !ok {
			return nil, ValidationError("completed cannot be null")
		}
		c.Set(models.ColCompleted, completed)
	}
	if patch.DueDate.Present() {
		v, err := dateChange("dueDate", patch.DueDate)
		if err != nil {
			return nil, err
		}
		c.Set(models.ColDueDate, v)
	}

	return c, nil
}
