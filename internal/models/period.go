package models

import "time"

type PeriodStatus string

const (
	PeriodDraft     PeriodStatus = "draft"
	PeriodActive    PeriodStatus = "active"
	PeriodCompleted PeriodStatus = "completed"
	PeriodCancelled PeriodStatus = "cancelled"
)

type Period struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	IsActive    bool         `json:"is_active"`
	Status      PeriodStatus `json:"status"`
	Groups      []int64      `json:"groups"`
	CreatedBy   *int64       `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CurrentlyActive — можно ли оценивать прямо сейчас. Всегда вычисляется, не кэшируется.
func (p Period) CurrentlyActive(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartDate) && !now.After(p.EndDate)
}

// Completed — окно периода уже закончилось (независимо от статуса).
func (p Period) Completed(now time.Time) bool {
	return p.EndDate.Before(now)
}

func (p Period) HasGroup(groupID int64) bool {
	for _, id := range p.Groups {
		if id == groupID {
			return true
		}
	}
	return false
}
