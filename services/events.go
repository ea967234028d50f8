package services

import "trello-project/microservices/tasks-service/models"

type EventKind string

const (
	EventTaskAssigned    EventKind = "task_assigned"
	EventSubtaskAssigned EventKind = "subtask_assigned"
	EventApprovalChanged EventKind = "approval_changed"
	EventDeleteRequested EventKind = "delete_requested"
)

// Event describes a committed state change that notifications report on.
type Event struct {
	Kind EventKind
	// Task is the task the event concerns, as loaded after the change.
	Task models.Task
	// SubtaskID and SubtaskTitle are set for subtask events.
	SubtaskID    string
	SubtaskTitle string
	// UserIDs are the added assignees for assignment events.
	UserIDs  []string
	Approval *ApprovalTransition
	Actor    models.Principal
}

// EventQueue collects the events of one request. It is drained only after
// the writes it describes have committed.
type EventQueue struct {
	events []Event
}

func (q *EventQueue) Push(e Event) {
	q.events = append(q.events, e)
}

// Drain returns the queued events and empties the queue.
func (q *EventQueue) Drain() []Event {
	events := q.events
	q.events = nil
	return events
}
