package models

import "time"

type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	GroupID   int64     `json:"group_id"`
	Members   []int64   `json:"members"`
	IsActive  bool      `json:"is_active"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (t Team) MemberCount() int { return len(t.Members) }

func (t Team) HasMember(userID int64) bool {
	for _, id := range t.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// TeamHistory — запись журнала участия. После закрытия (EndDate != nil) не меняется.
type TeamHistory struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	TeamID    int64      `json:"team_id"`
	GroupID   int64      `json:"group_id"`
	PeriodID  *int64     `json:"period_id"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsActive  bool       `json:"is_active"`

	TeamName  string `json:"team_name"`
	GroupName string `json:"group_name"`
}
