package models

import "time"

const (
	MaxWeightBudget = 100
	DefaultMaxScore = 100
)

type Criterion struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Weight      int       `json:"weight"`
	MaxScore    int       `json:"max_score"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}
