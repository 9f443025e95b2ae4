package models

import "time"

type Group struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxStudents int    `json:"max_students"`
	// CurrentStudents вычисляется запросом (активные студенты), в таблице не хранится.
	CurrentStudents int       `json:"current_students"`
	IsActive        bool      `json:"is_active"`
	CreatedBy       *int64    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func (g Group) Full() bool { return g.CurrentStudents >= g.MaxStudents }
