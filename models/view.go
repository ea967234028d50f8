package models

// UserSummary is the compact user shape embedded in views.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Initials string `json:"initials"`
}

func SummarizeUser(u User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Initials: Initials(u.Name)}
}

// UnknownUser is used when a referenced user record no longer exists.
func UnknownUser(id string) UserSummary {
	return UserSummary{ID: id, Name: "Unknown User", Initials: "?"}
}

type CommentView struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Author    UserSummary `json:"author"`
	CreatedAt string      `json:"createdAt"`
}

type SubtaskView struct {
	ID        string        `json:"id"`
	TaskID    string        `json:"taskId"`
	Title     string        `json:"title"`
	Status    TaskStatus    `json:"status"`
	Completed bool          `json:"completed"`
	DueDate   *string       `json:"dueDate,omitempty"`
	Assignees []UserSummary `json:"assignees"`
	Comments  []CommentView `json:"comments"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

// TaskView is the denormalized read shape returned by task operations.
type TaskView struct {
	ID                string         `json:"id"`
	ProjectID         string         `json:"projectId"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Status            TaskStatus     `json:"status"`
	Priority          Priority       `json:"priority"`
	Progress          int            `json:"progress"`
	ApprovalStatus    ApprovalStatus `json:"approvalStatus,omitempty"`
	ApprovedAt        *string        `json:"approvedAt,omitempty"`
	ApprovedByID      *string        `json:"approvedById,omitempty"`
	RejectionReason   *string        `json:"rejectionReason,omitempty"`
	StartDate         *string        `json:"startDate,omitempty"`
	DueDate           *string        `json:"dueDate,omitempty"`
	CompletedAt       *string        `json:"completedAt,omitempty"`
	CreatedAt         string         `json:"createdAt"`
	UpdatedAt         string         `json:"updatedAt"`
	CreatedBy         UserSummary    `json:"createdBy"`
	Assignees         []UserSummary  `json:"assignees"`
	Subtasks          []SubtaskView  `json:"subtasks"`
	Comments          []CommentView  `json:"comments"`
	SubtasksCompleted int            `json:"subtasksCompleted"`
	TotalSubtasks     int            `json:"totalSubtasks"`
}
