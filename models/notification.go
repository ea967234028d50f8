package models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned      NotificationType = "task_assigned"
	NotificationSubtaskAssigned   NotificationType = "subtask_assigned"
	NotificationTaskDeleteRequest NotificationType = "task_delete_request"
)

// ApprovalNotificationType returns task_<status> or admin_task_<status>.
func ApprovalNotificationType(status ApprovalStatus, admin bool) NotificationType {
	if admin {
		return NotificationType("admin_task_" + string(status))
	}
	return NotificationType("task_" + string(status))
}

type Notification struct {
	ID          string           `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	Type        NotificationType `json:"type" bson:"type"`
	Title       string           `json:"title" bson:"title"`
	Message     string           `json:"message" bson:"message"`
	UserID      string           `json:"userId" bson:"user_id" gorm:"index;type:varchar(36)"`
	RelatedID   string           `json:"relatedId,omitempty" bson:"related_id,omitempty"`
	RelatedType string           `json:"relatedType,omitempty" bson:"related_type,omitempty"`
	Read        bool             `json:"read" bson:"read"`
	CreatedAt   time.Time        `json:"createdAt" bson:"created_at"`
}
