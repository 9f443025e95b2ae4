package models

import "time"

type CriterionScore struct {
	CriterionID int64 `json:"criterion_id"`
	Score       int   `json:"score"`
}

type Evaluation struct {
	ID          int64            `json:"id"`
	EvaluatorID int64            `json:"evaluator_id"`
	TeamID      int64            `json:"team_id"`
	PeriodID    int64            `json:"period_id"`
	Criteria    []CriterionScore `json:"criteria"`
	TotalScore  float64          `json:"total_score"`
	Comments    string           `json:"comments"`
	IsSubmitted bool             `json:"is_submitted"`
	CreatedAt   time.Time        `json:"created_at"`
}

// EvaluationRow — оценка с именами для отчётов и экспорта.
type EvaluationRow struct {
	Evaluation
	EvaluatorName string `json:"evaluator_name"`
	TeamName      string `json:"team_name"`
	GroupID       int64  `json:"group_id"`
	GroupName     string `json:"group_name"`
}
