package models

import "strings"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

type User struct {
	ID     string `json:"id" bson:"_id" gorm:"primaryKey;type:varchar(36)"`
	Name   string `json:"name" bson:"name"`
	Email  string `json:"email" bson:"email" gorm:"uniqueIndex"`
	Role   Role   `json:"role" bson:"role" gorm:"index"`
	Avatar string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// Principal is the authenticated caller of a core operation.
type Principal struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Initials returns up to two upper-case letters taken from the words of name.
func Initials(name string) string {
	var letters []rune
	for _, word := range strings.Fields(name) {
		letters = append(letters, []rune(word)[0])
		if len(letters) == 2 {
			break
		}
	}
	if len(letters) == 0 {
		return "?"
	}
	return strings.ToUpper(string(letters))
}
