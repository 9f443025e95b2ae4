package models

import "time"

type Role string

const (
	Student Role = "student"
	Admin   Role = "admin"
)

func (r Role) Valid() bool { return r == Student || r == Admin }

type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	GroupID     int64     `json:"group_id"`
	CurrentTeam *int64    `json:"current_team_id,omitempty"`
	Role        Role      `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasTeam — назначен ли студент в команду.
func (u User) HasTeam() bool { return u.CurrentTeam != nil }
