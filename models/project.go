package models

import "time"

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Project struct {
	ID          string        `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	Name        string        `json:"name" bson:"name"`
	Status      ProjectStatus `json:"status" bson:"status"`
	Priority    Priority      `json:"priority" bson:"priority"`
	Progress    int           `json:"progress" bson:"progress"`
	OwnerID     string        `json:"ownerId" bson:"owner_id" gorm:"index;type:varchar(36)"`
	Team        []string      `json:"team" bson:"team" gorm:"-"`
	CreatedAt   time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" bson:"updated_at"`
	CompletedAt *time.Time    `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
}

// HasMember reports whether userID belongs to the project team.
func (p *Project) HasMember(userID string) bool {
	for _, id := range p.Team {
		if id == userID {
			return true
		}
	}
	return false
}
