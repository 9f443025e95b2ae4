package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/metrics"
	"github.com/Spok95/group-grader/internal/models"
)

// EvaluationService принимает оценки команд.
type EvaluationService struct {
	core
	rule EligibilityRule
}

type Submission struct {
	EvaluatorID int64
	TeamID      int64
	PeriodID    int64
	// Scores — сырые баллы по id критерия. float64, чтобы отличить 7.5 от 7.
	Scores   map[int64]float64
	Comments string
}

func (s *EvaluationService) Rule() EligibilityRule { return s.rule }

// Submit проверяет предусловия по порядку (период, своя команда, правило
// групп, дубликат, баллы), считает итог и сохраняет оценку. Проверка
// дубликата и вставка в одной транзакции; гонку добивает UNIQUE в хранилище.
func (s *EvaluationService) Submit(ctx context.Context, in Submission) (models.Evaluation, error) {
	comments := strings.TrimSpace(in.Comments)
	if err := checkLen("комментарий", comments, 0, 1000); err != nil {
		return models.Evaluation{}, err
	}

	var ev models.Evaluation
	err := s.exec(ctx, "evaluations.submit", func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(r Repository) error {
			now := s.now()

			// 1. период
			p, err := r.GetPeriod(ctx, in.PeriodID)
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("%w: период %d не найден", apperr.ErrPeriodNotActive, in.PeriodID)
			}
			if err != nil {
				return err
			}
			if !p.CurrentlyActive(now) {
				return apperr.ErrPeriodNotActive
			}

			// 2-3. своя команда
			u, err := r.GetUser(ctx, in.EvaluatorID)
			if err != nil {
				return err
			}
			if !u.HasTeam() || !u.IsActive {
				return apperr.ErrNoActiveTeam
			}
			if *u.CurrentTeam == in.TeamID {
				return apperr.ErrSelfEvaluation
			}

			// 4. правило групп
			team, err := r.GetTeam(ctx, in.TeamID)
			if err != nil {
				return err
			}
			if !team.IsActive {
				return apperr.ErrTeamInactive
			}
			if !s.rule.Allows(u.GroupID, team.GroupID) {
				return fmt.Errorf("%w: правило %s", apperr.ErrGroupBoundary, s.rule)
			}

			// 5. дубликат
			exists, err := r.EvaluationExists(ctx, in.EvaluatorID, in.TeamID, in.PeriodID)
			if err != nil {
				return err
			}
			if exists {
				return apperr.ErrDuplicateEvaluation
			}

			// 6. баллы по всем активным критериям
			criteria, err := r.ListCriteria(ctx, true)
			if err != nil {
				return err
			}
			scores, err := ValidateScores(criteria, in.Scores)
			if err != nil {
				return err
			}

			ev = models.Evaluation{
				EvaluatorID: in.EvaluatorID,
				TeamID:      in.TeamID,
				PeriodID:    in.PeriodID,
				Criteria:    scores,
				TotalScore:  TotalScore(criteria, scores),
				Comments:    comments,
				IsSubmitted: true,
				CreatedAt:   now.UTC(),
			}
			id, err := r.CreateEvaluation(ctx, ev)
			if err != nil {
				return err
			}
			ev.ID = id
			return nil
		})
	}, zap.Int64("evaluator_id", in.EvaluatorID), zap.Int64("team_id", in.TeamID), zap.Int64("period_id", in.PeriodID))
	if err != nil {
		return models.Evaluation{}, err
	}

	metrics.EvaluationsSubmitted.Inc()
	s.log.Info("evaluation submitted",
		zap.Int64("evaluation_id", ev.ID), zap.Int64("team_id", ev.TeamID), zap.Float64("total", ev.TotalScore))
	return ev, nil
}

// PendingTeams — команды, которые студент ещё может оценить в активном
// периоде: по правилу групп, без своей и уже оценённых.
func (s *EvaluationService) PendingTeams(ctx context.Context, evaluatorID int64) (*models.Period, []models.Team, error) {
	var (
		period  *models.Period
		pending []models.Team
	)
	err := s.read(ctx, "evaluations.pending", func(ctx context.Context) error {
		p, err := s.repo.ActivePeriod(ctx)
		if err != nil {
			return err
		}
		if p == nil || !p.CurrentlyActive(s.now()) {
			return apperr.ErrPeriodNotActive
		}
		period = p

		u, err := s.repo.GetUser(ctx, evaluatorID)
		if err != nil {
			return err
		}
		if !u.HasTeam() || !u.IsActive {
			return apperr.ErrNoActiveTeam
		}

		groups := []int64{u.GroupID}
		if s.rule == CrossGroup {
			groups = slices.DeleteFunc(slices.Clone(p.Groups), func(id int64) bool { return id == u.GroupID })
		}
		teams, err := s.repo.ListTeams(ctx, groups, true)
		if err != nil {
			return err
		}
		done, err := s.repo.EvaluatedTeamIDs(ctx, evaluatorID, p.ID)
		if err != nil {
			return err
		}
		for _, t := range teams {
			if t.ID == *u.CurrentTeam || slices.Contains(done, t.ID) || !s.rule.Allows(u.GroupID, t.GroupID) {
				continue
			}
			pending = append(pending, t)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return period, pending, nil
}

func (s *EvaluationService) Get(ctx context.Context, id int64) (models.Evaluation, error) {
	var ev models.Evaluation
	err := s.read(ctx, "evaluations.get", func(ctx context.Context) (err error) {
		ev, err = s.repo.GetEvaluation(ctx, id)
		return err
	})
	return ev, err
}
