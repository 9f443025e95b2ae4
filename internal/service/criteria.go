package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
)

const criteriaLock = "criteria"

// CriteriaService — реестр критериев. Держит инвариант: сумма весов активных
// критериев не больше models.MaxWeightBudget.
type CriteriaService struct {
	core
}

type CriterionInput struct {
	Name        string
	Description string
	Weight      int
	// MaxScore 0 — models.DefaultMaxScore.
	MaxScore  int
	CreatedBy *int64
}

// CriterionPatch — частичное обновление, nil-поля не меняются.
type CriterionPatch struct {
	Name        *string
	Description *string
	Weight      *int
	MaxScore    *int
	IsActive    *bool
}

func validateCriterion(c models.Criterion) error {
	if err := checkLen("название", c.Name, 2, 100); err != nil {
		return err
	}
	if err := checkLen("описание", c.Description, 0, 500); err != nil {
		return err
	}
	if err := checkRange("вес", c.Weight, 0, models.MaxWeightBudget); err != nil {
		return err
	}
	return checkRange("максимальный балл", c.MaxScore, 1, 100)
}

// checkBudget — вызывается внутри транзакции под блокировкой criteria.
func checkBudget(ctx context.Context, r Repository, c models.Criterion) error {
	if !c.IsActive {
		return nil
	}
	others, err := r.ActiveWeightSum(ctx, c.ID)
	if err != nil {
		return err
	}
	if others+c.Weight > models.MaxWeightBudget {
		return fmt.Errorf("%w: занято %d, запрошено %d", apperr.ErrWeightBudgetExceeded, others, c.Weight)
	}
	return nil
}

func (s *CriteriaService) Create(ctx context.Context, in CriterionInput) (models.Criterion, error) {
	c := models.Criterion{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Weight:      in.Weight,
		MaxScore:    in.MaxScore,
		IsActive:    true,
		CreatedBy:   in.CreatedBy,
	}
	if c.MaxScore == 0 {
		c.MaxScore = models.DefaultMaxScore
	}
	if err := validateCriterion(c); err != nil {
		return models.Criterion{}, err
	}

	err := s.exec(ctx, "criteria.create", func(ctx context.Context) error {
		return s.tx(ctx, criteriaLock, func(r Repository) error {
			if err := checkBudget(ctx, r, c); err != nil {
				return err
			}
			c.CreatedAt = s.now().UTC()
			id, err := r.CreateCriterion(ctx, c)
			if err != nil {
				return err
			}
			c.ID = id
			return nil
		})
	}, zap.String("name", c.Name), zap.Int("weight", c.Weight))
	if err != nil {
		return models.Criterion{}, err
	}
	s.log.Info("criterion created", zap.Int64("criterion_id", c.ID), zap.Int("weight", c.Weight))
	return c, nil
}

func (s *CriteriaService) Update(ctx context.Context, id int64, p CriterionPatch) (models.Criterion, error) {
	var out models.Criterion
	err := s.exec(ctx, "criteria.update", func(ctx context.Context) error {
		return s.tx(ctx, criteriaLock, func(r Repository) error {
			c, err := r.GetCriterion(ctx, id)
			if err != nil {
				return err
			}
			if p.Name != nil {
				c.Name = strings.TrimSpace(*p.Name)
			}
			if p.Description != nil {
				c.Description = strings.TrimSpace(*p.Description)
			}
			if p.Weight != nil {
				c.Weight = *p.Weight
			}
			if p.MaxScore != nil {
				c.MaxScore = *p.MaxScore
			}
			if p.IsActive != nil {
				c.IsActive = *p.IsActive
			}
			if err := validateCriterion(c); err != nil {
				return err
			}
			if err := checkBudget(ctx, r, c); err != nil {
				return err
			}
			if err := r.UpdateCriterion(ctx, c); err != nil {
				return err
			}
			out = c
			return nil
		})
	}, zap.Int64("criterion_id", id))
	return out, err
}

func (s *CriteriaService) Activate(ctx context.Context, id int64) (models.Criterion, error) {
	active := true
	return s.Update(ctx, id, CriterionPatch{IsActive: &active})
}

// Deactivate выводит критерий из бюджета весов. Сохранённые оценки не меняются.
func (s *CriteriaService) Deactivate(ctx context.Context, id int64) (models.Criterion, error) {
	active := false
	return s.Update(ctx, id, CriterionPatch{IsActive: &active})
}

func (s *CriteriaService) Get(ctx context.Context, id int64) (models.Criterion, error) {
	var c models.Criterion
	err := s.read(ctx, "criteria.get", func(ctx context.Context) (err error) {
		c, err = s.repo.GetCriterion(ctx, id)
		return err
	})
	return c, err
}

// List — по убыванию веса.
func (s *CriteriaService) List(ctx context.Context, activeOnly bool) ([]models.Criterion, error) {
	var list []models.Criterion
	err := s.read(ctx, "criteria.list", func(ctx context.Context) (err error) {
		list, err = s.repo.ListCriteria(ctx, activeOnly)
		return err
	})
	return list, err
}
