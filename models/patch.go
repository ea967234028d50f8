package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is a tri-state value used in partial updates: absent (no-op),
// present but null (clear) or present with a value (set).
type Field[T any] struct {
	present bool
	null    bool
	value   T
}

func Set[T any](v T) Field[T] {
	return Field[T]{present: true, value: v}
}

func Clear[T any]() Field[T] {
	return Field[T]{present: true, null: true}
}

// Present reports whether the field was supplied at all.
func (f Field[T]) Present() bool { return f.present }

// IsNull reports whether the field was supplied as an explicit null.
func (f Field[T]) IsNull() bool { return f.present && f.null }

// Value returns the supplied value; ok is false for absent and null fields.
func (f Field[T]) Value() (v T, ok bool) {
	if !f.present || f.null {
		return v, false
	}
	return f.value, true
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		var zero T
		f.value = zero
		return nil
	}
	f.null = false
	return json.Unmarshal(data, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.present || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// TaskPatch is the allow-listed set of task fields a caller may change.
// Date fields carry the raw string from the request and are parsed by the service.
type TaskPatch struct {
	Title           Field[string]         `json:"title"`
	Description     Field[string]         `json:"description"`
	Status          Field[TaskStatus]     `json:"status"`
	Priority        Field[Priority]       `json:"priority"`
	Progress        Field[int]            `json:"progress"`
	StartDate       Field[string]         `json:"startDate"`
	DueDate         Field[string]         `json:"dueDate"`
	CompletedAt     Field[string]         `json:"completedAt"`
	ApprovalStatus  Field[ApprovalStatus] `json:"approvalStatus"`
	RejectionReason Field[string]         `json:"rejectionReason"`
	AssigneeIDs     Field[[]string]       `json:"assigneeIds"`
}

type SubtaskPatch struct {
	Title       Field[string]     `json:"title"`
	Status      Field[TaskStatus] `json:"status"`
	Completed   Field[bool]       `json:"completed"`
	DueDate     Field[string]     `json:"dueDate"`
	AssigneeIDs Field[[]string]   `json:"assigneeIds"`
}

type Change struct {
	Column string
	Value  any
}

// Changes is an ordered column -> value set persisted as one update.
// A nil value clears the column.
type Changes []Change

func (c *Changes) Set(column string, value any) {
	for i := range *c {
		if (*c)[i].Column == column {
			(*c)[i].Value = value
			return
		}
	}
	*c = append(*c, Change{Column: column, Value: value})
}

func (c Changes) Get(column string) (any, bool) {
	for _, ch := range c {
		if ch.Column == column {
			return ch.Value, true
		}
	}
	return nil, false
}

func (c Changes) Has(column string) bool {
	_, ok := c.Get(column)
	return ok
}

func (c Changes) Map() map[string]any {
	m := make(map[string]any, len(c))
	for _, ch := range c {
		m[ch.Column] = ch.Value
	}
	return m
}

// ApplyTask copies changes onto t. Unknown columns are ignored.
func (c Changes) ApplyTask(t *Task) {
	for _, ch := range c {
		switch ch.Column {
		case ColTitle:
			t.Title = asString(ch.Value)
		case ColDescription:
			t.Description = asString(ch.Value)
		case ColStatus:
			t.Status = TaskStatus(asString(ch.Value))
		case ColPriority:
			t.Priority = Priority(asString(ch.Value))
		case ColProgress:
			t.Progress = asInt(ch.Value)
		case ColApprovalStatus:
			t.ApprovalStatus = ApprovalStatus(asString(ch.Value))
		case ColApprovedAt:
			t.ApprovedAt = asTime(ch.Value)
		case ColApprovedByID:
			t.ApprovedByID = asStringPtr(ch.Value)
		case ColRejectionReason:
			t.RejectionReason = asStringPtr(ch.Value)
		case ColStartDate:
			t.StartDate = asTime(ch.Value)
		case ColDueDate:
			t.DueDate = asTime(ch.Value)
		case ColCompletedAt:
			t.CompletedAt = asTime(ch.Value)
		case ColUpdatedAt:
			if ts := asTime(ch.Value); ts != nil {
				t.UpdatedAt = *ts
			}
		}
	}
}

func (c Changes) ApplySubtask(s *Subtask) {
	for _, ch := range c {
		switch ch.Column {
		case ColTitle:
			s.Title = asString(ch.Value)
		case ColStatus:
			s.Status = TaskStatus(asString(ch.Value))
		case ColCompleted:
			b, _ := ch.Value.(bool)
			s.Completed = b
		case ColDueDate:
			s.DueDate = asTime(ch.Value)
		case ColUpdatedAt:
			if ts := asTime(ch.Value); ts != nil {
				s.UpdatedAt = *ts
			}
		}
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s != nil {
			return *s
		}
	case TaskStatus:
		return string(s)
	case Priority:
		return string(s)
	case ApprovalStatus:
		return string(s)
	}
	return ""
}

func asStringPtr(v any) *string {
	switch s := v.(type) {
	case string:
		return &s
	case *string:
		return s
	}
	return nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	}
	return 0
}

func asTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}
