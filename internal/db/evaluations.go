package db

import (
	"context"
	"fmt"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
)

const evaluationCols = `id, evaluator_id, team_id, period_id, total_score, comments, is_submitted, created_at`

func scanEvaluation(sc scanner, e *models.Evaluation) error {
	return sc.Scan(&e.ID, &e.EvaluatorID, &e.TeamID, &e.PeriodID, &e.TotalScore, &e.Comments, &e.IsSubmitted, &e.CreatedAt)
}

func (s *Store) EvaluationExists(ctx context.Context, evaluatorID, teamID, periodID int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM evaluations
		WHERE evaluator_id = $1 AND team_id = $2 AND period_id = $3`,
		evaluatorID, teamID, periodID).Scan(&n)
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

// CreateEvaluation пишет оценку и построчные баллы. Гонку двух одинаковых
// отправок ловит UNIQUE (evaluator_id, team_id, period_id).
func (s *Store) CreateEvaluation(ctx context.Context, e models.Evaluation) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO evaluations (evaluator_id, team_id, period_id, total_score, comments, is_submitted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.EvaluatorID, e.TeamID, e.PeriodID, e.TotalScore, e.Comments, e.IsSubmitted, e.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isUnique(err) {
			return 0, fmt.Errorf("%w: team %d period %d", apperr.ErrDuplicateEvaluation, e.TeamID, e.PeriodID)
		}
		return 0, mapErr(err)
	}

	for i, cs := range e.Criteria {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO evaluation_scores (evaluation_id, position, criterion_id, score)
			VALUES ($1, $2, $3, $4)`, id, i, cs.CriterionID, cs.Score); err != nil {
			return 0, mapErr(err)
		}
	}
	return id, nil
}

func (s *Store) GetEvaluation(ctx context.Context, id int64) (models.Evaluation, error) {
	var e models.Evaluation
	if err := scanEvaluation(s.q.QueryRowContext(ctx, `SELECT `+evaluationCols+` FROM evaluations WHERE id = $1`, id), &e); err != nil {
		return models.Evaluation{}, mapErr(err)
	}
	scores, err := s.loadScores(ctx, []int64{id})
	if err != nil {
		return models.Evaluation{}, err
	}
	e.Criteria = scores[id]
	return e, nil
}

func (s *Store) ListEvaluationRows(ctx context.Context, periodID int64) ([]models.EvaluationRow, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT e.id, e.evaluator_id, e.team_id, e.period_id, e.total_score, e.comments, e.is_submitted, e.created_at,
		       COALESCE(u.name, ''), COALESCE(t.name, ''), COALESCE(t.group_id, 0), COALESCE(g.name, '')
		FROM evaluations e
		LEFT JOIN users u ON u.id = e.evaluator_id
		LEFT JOIN teams t ON t.id = e.team_id
		LEFT JOIN student_groups g ON g.id = t.group_id
		WHERE e.period_id = $1
		ORDER BY e.id`, periodID)
	if err != nil {
		return nil, mapErr(err)
	}
	var (
		out []models.EvaluationRow
		ids []int64
	)
	for rows.Next() {
		var r models.EvaluationRow
		if err := rows.Scan(&r.ID, &r.EvaluatorID, &r.TeamID, &r.PeriodID, &r.TotalScore, &r.Comments, &r.IsSubmitted,
			&r.CreatedAt, &r.EvaluatorName, &r.TeamName, &r.GroupID, &r.GroupName); err != nil {
			_ = rows.Close()
			return nil, mapErr(err)
		}
		out = append(out, r)
		ids = append(ids, r.ID)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	scores, err := s.loadScores(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Criteria = scores[out[i].ID]
	}
	return out, nil
}

func (s *Store) loadScores(ctx context.Context, evaluationIDs []int64) (map[int64][]models.CriterionScore, error) {
	out := make(map[int64][]models.CriterionScore, len(evaluationIDs))
	if len(evaluationIDs) == 0 {
		return out, nil
	}
	in, args := inList(1, evaluationIDs)
	rows, err := s.q.QueryContext(ctx, `
		SELECT evaluation_id, criterion_id, score FROM evaluation_scores
		WHERE evaluation_id IN `+in+`
		ORDER BY evaluation_id, position`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			evID int64
			cs   models.CriterionScore
		)
		if err := rows.Scan(&evID, &cs.CriterionID, &cs.Score); err != nil {
			return nil, mapErr(err)
		}
		out[evID] = append(out[evID], cs)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) EvaluatedTeamIDs(ctx context.Context, evaluatorID, periodID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT team_id FROM evaluations
		WHERE evaluator_id = $1 AND period_id = $2
		ORDER BY team_id`, evaluatorID, periodID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		ids = append(ids, id)
	}
	return ids, mapErr(rows.Err())
}
