package repositories

import (
	"context"
	"errors"

	"trello-project/microservices/tasks-service/models"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")

type AssignmentKind string

const (
	TaskAssignees    AssignmentKind = "task_assignees"
	SubtaskAssignees AssignmentKind = "subtask_assignees"
)

// Store is the entity store consumed by the task engine. Implementations
// hold no business logic.
type Store interface {
	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	UpdateProjectProgress(ctx context.Context, id string, progress int) error

	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasksByProject(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, changes models.Changes) error
	DeleteTask(ctx context.Context, id string) error

	CreateSubtask(ctx context.Context, subtask *models.Subtask) error
	GetSubtask(ctx context.Context, id string) (*models.Subtask, error)
	ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error)
	UpdateSubtask(ctx context.Context, id string, changes models.Changes) error
	DeleteSubtask(ctx context.Context, id string) error
	DeleteSubtasksByTask(ctx context.Context, taskID string) error

	ListAssignees(ctx context.Context, kind AssignmentKind, entityID string) ([]string, error)
	// ReplaceAssignees deletes every edge of entityID and inserts userIDs.
	ReplaceAssignees(ctx context.Context, kind AssignmentKind, entityID string, userIDs []string) error
	DeleteAssignees(ctx context.Context, kind AssignmentKind, entityIDs ...string) error

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListTaskComments(ctx context.Context, taskID string) ([]models.Comment, error)
	ListSubtaskComments(ctx context.Context, subtaskID string) ([]models.Comment, error)
	DeleteTaskComments(ctx context.Context, taskID string) error
	DeleteSubtaskComments(ctx context.Context, subtaskIDs ...string) error

	CreateTag(ctx context.Context, tag *models.Tag) error
	ListTags(ctx context.Context, owner models.TagOwner, entityID string) ([]models.Tag, error)
	DeleteTags(ctx context.Context, owner models.TagOwner, entityIDs ...string) error

	CreateAttachment(ctx context.Context, attachment *models.Attachment) error
	ListAttachments(ctx context.Context, taskID string) ([]models.Attachment, error)
	DeleteAttachments(ctx context.Context, taskID string) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUsers(ctx context.Context, ids []string) ([]models.User, error)
	// WhichUsersExist returns the subset of ids that resolve to a user.
	WhichUsersExist(ctx context.Context, ids []string) (map[string]bool, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)

	// WithinTx runs fn against a transactional view of the store. Returning
	// an error from fn rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// NotificationRepository is the sink for dispatched notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
