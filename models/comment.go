package models

import "time"

type Comment struct {
	ID        string    `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	TaskID    string    `json:"taskId,omitempty" bson:"task_id,omitempty" gorm:"index;type:varchar(36)"`
	SubtaskID string    `json:"subtaskId,omitempty" bson:"subtask_id,omitempty" gorm:"index;type:varchar(36)"`
	AuthorID  string    `json:"authorId" bson:"author_id" gorm:"type:varchar(36)"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type Attachment struct {
	ID           string    `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	TaskID       string    `json:"taskId" bson:"task_id" gorm:"index;type:varchar(36)"`
	FileName     string    `json:"fileName" bson:"file_name"`
	URL          string    `json:"url" bson:"url"`
	UploadedByID string    `json:"uploadedById" bson:"uploaded_by_id" gorm:"type:varchar(36)"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

type TagOwner string

const (
	TagOwnerTask    TagOwner = "task"
	TagOwnerSubtask TagOwner = "subtask"
)

type Tag struct {
	ID         string   `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	EntityID   string   `json:"entityId" bson:"entity_id" gorm:"index;type:varchar(36)"`
	EntityType TagOwner `json:"entityType" bson:"entity_type"`
	Name       string   `json:"name" bson:"name"`
}

// Assignment is a user <-> task or user <-> subtask edge.
type Assignment struct {
	EntityID string `json:"entityId" bson:"entity_id" gorm:"primaryKey;type:varchar(36)"`
	UserID   string `json:"userId" bson:"user_id" gorm:"primaryKey;type:varchar(36)"`
}
