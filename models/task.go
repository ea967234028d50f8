package models

import "time"

type TaskStatus string

const (
	StatusPlanning   TaskStatus = "planning"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusBlocked    TaskStatus = "blocked"
	StatusPostponed  TaskStatus = "postponed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPlanning, StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusBlocked, StatusPostponed:
		return true
	}
	return false
}

type ApprovalStatus string

const (
	ApprovalUnset    ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (a ApprovalStatus) Valid() bool {
	switch a {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

type Task struct {
	ID              string         `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	ProjectID       string         `json:"projectId" bson:"project_id" gorm:"index;type:varchar(36)"`
	Title           string         `json:"title" bson:"title"`
	Description     string         `json:"description" bson:"description"`
	Status          TaskStatus     `json:"status" bson:"status"`
	Priority        Priority       `json:"priority" bson:"priority"`
	Progress        int            `json:"progress" bson:"progress"`
	CreatedByID     string         `json:"createdById" bson:"created_by_id" gorm:"type:varchar(36)"`
	ApprovalStatus  ApprovalStatus `json:"approvalStatus,omitempty" bson:"approval_status"`
	ApprovedAt      *time.Time     `json:"approvedAt,omitempty" bson:"approved_at"`
	ApprovedByID    *string        `json:"approvedById,omitempty" bson:"approved_by_id"`
	RejectionReason *string        `json:"rejectionReason,omitempty" bson:"rejection_reason"`
	StartDate       *time.Time     `json:"startDate,omitempty" bson:"start_date"`
	DueDate         *time.Time     `json:"dueDate,omitempty" bson:"due_date"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty" bson:"completed_at"`
	CreatedAt       time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" bson:"updated_at"`
}

type Subtask struct {
	ID        string     `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	TaskID    string     `json:"taskId" bson:"task_id" gorm:"index;type:varchar(36)"`
	Title     string     `json:"title" bson:"title"`
	Status    TaskStatus `json:"status" bson:"status"`
	Completed bool       `json:"completed" bson:"completed"`
	DueDate   *time.Time `json:"dueDate,omitempty" bson:"due_date"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at"`
}

// Column names shared by every store backend.
const (
	ColTitle           = "title"
	ColDescription     = "description"
	ColStatus          = "status"
	ColPriority        = "priority"
	ColProgress        = "progress"
	ColApprovalStatus  = "approval_status"
	ColApprovedAt      = "approved_at"
	ColApprovedByID    = "approved_by_id"
	ColRejectionReason = "rejection_reason"
	ColStartDate       = "start_date"
	ColDueDate         = "due_date"
	ColCompletedAt     = "completed_at"
	ColCompleted       = "completed"
	ColUpdatedAt       = "updated_at"
)
