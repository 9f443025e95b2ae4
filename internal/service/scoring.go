package service

import (
	"fmt"
	"math"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
)

// round2 — округление до двух знаков.
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// TotalScore — взвешенная нормированная сумма:
//
//	Σ(score/maxScore*weight) / Σweight * 100, округлено до 0.01.
//
// При нулевой сумме весов результат 0. Критерии без оценки не учитываются.
func TotalScore(criteria []models.Criterion, scores []models.CriterionScore) float64 {
	byID := make(map[int64]int, len(scores))
	for _, s := range scores {
		byID[s.CriterionID] = s.Score
	}
	var total, weights float64
	for _, c := range criteria {
		score, ok := byID[c.ID]
		if !ok || c.MaxScore <= 0 {
			continue
		}
		total += float64(score) / float64(c.MaxScore) * float64(c.Weight)
		weights += float64(c.Weight)
	}
	if weights == 0 {
		return 0
	}
	return round2(total / weights * 100)
}

// ValidateScores проверяет, что у каждого активного критерия ровно одна целая
// оценка в [0, maxScore] и лишних оценок нет. Возвращает пары в порядке criteria.
func ValidateScores(criteria []models.Criterion, raw map[int64]float64) ([]models.CriterionScore, error) {
	out := make([]models.CriterionScore, 0, len(criteria))
	for _, c := range criteria {
		v, ok := raw[c.ID]
		if !ok {
			return nil, fmt.Errorf("%w: нет оценки по критерию %q", apperr.ErrInvalidScore, c.Name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: оценка по критерию %q должна быть целой", apperr.ErrInvalidScore, c.Name)
		}
		if v < 0 || v > float64(c.MaxScore) {
			return nil, fmt.Errorf("%w: оценка %v по критерию %q вне диапазона 0..%d", apperr.ErrInvalidScore, v, c.Name, c.MaxScore)
		}
		out = append(out, models.CriterionScore{CriterionID: c.ID, Score: int(v)})
	}
	if len(raw) != len(criteria) {
		return nil, fmt.Errorf("%w: оценки по неизвестным или неактивным критериям", apperr.ErrInvalidScore)
	}
	return out, nil
}
