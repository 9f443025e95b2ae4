package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/metrics"
	"github.com/Spok95/group-grader/internal/models"
)

const periodsLock = "periods"

// PeriodService — жизненный цикл периодов. Единственный компонент, который
// меняет is_active у периода: активным может быть не больше одного.
type PeriodService struct {
	core
	notify Notifier
}

type PeriodInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	Groups      []int64
	CreatedBy   *int64
}

func (s *PeriodService) Create(ctx context.Context, in PeriodInput) (models.Period, error) {
	p := models.Period{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      models.PeriodDraft,
		CreatedBy:   in.CreatedBy,
	}
	if err := checkLen("название", p.Name, 2, 100); err != nil {
		return models.Period{}, err
	}
	if err := checkLen("описание", p.Description, 0, 500); err != nil {
		return models.Period{}, err
	}
	if !p.EndDate.After(p.StartDate) {
		return models.Period{}, apperr.ErrInvalidDateRange
	}
	p.Groups = slices.Compact(slices.Sorted(slices.Values(in.Groups)))
	if len(p.Groups) == 0 {
		return models.Period{}, fmt.Errorf("%w: нужна хотя бы одна группа", apperr.ErrInvalidInput)
	}

	err := s.exec(ctx, "periods.create", func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(r Repository) error {
			for _, gid := range p.Groups {
				if _, err := r.GetGroup(ctx, gid); err != nil {
					return fmt.Errorf("group %d: %w", gid, err)
				}
			}
			p.CreatedAt = s.now().UTC()
			id, err := r.CreatePeriod(ctx, p)
			if err != nil {
				return err
			}
			p.ID = id
			return nil
		})
	}, zap.String("name", p.Name))
	if err != nil {
		return models.Period{}, err
	}
	return p, nil
}

// Activate переводит draft-период в active, предварительно завершая все
// другие активные периоды. Обе записи в одной транзакции. Повторная
// активация уже активного периода ничего не меняет.
func (s *PeriodService) Activate(ctx context.Context, id int64) (models.Period, error) {
	var (
		p         models.Period
		completed []int64
		changed   bool
	)
	err := s.exec(ctx, "periods.activate", func(ctx context.Context) error {
		changed, completed = false, nil
		return s.tx(ctx, periodsLock, func(r Repository) error {
			var err error
			p, err = r.GetPeriod(ctx, id)
			if err != nil {
				return err
			}
			switch {
			case p.IsActive:
				return nil
			case p.Status != models.PeriodDraft:
				return fmt.Errorf("%w: %s → active", apperr.ErrInvalidTransition, p.Status)
			}

			if completed, err = r.CompleteActivePeriods(ctx, id); err != nil {
				return err
			}
			if err := r.SetPeriodState(ctx, id, true, models.PeriodActive); err != nil {
				return err
			}
			p.IsActive, p.Status, changed = true, models.PeriodActive, true
			return nil
		})
	}, zap.Int64("period_id", id))
	if err != nil {
		return models.Period{}, err
	}

	if changed {
		metrics.PeriodTransitions.WithLabelValues(string(models.PeriodActive)).Inc()
		metrics.PeriodTransitions.WithLabelValues(string(models.PeriodCompleted)).Add(float64(len(completed)))
		s.log.Info("period activated", zap.Int64("period_id", id), zap.Int64s("completed", completed))
		s.notify.PeriodActivated(ctx, p.Name)
	}
	return p, nil
}

// Deactivate: active → completed. Для уже завершённого периода — no-op.
func (s *PeriodService) Deactivate(ctx context.Context, id int64) (models.Period, error) {
	var (
		p       models.Period
		changed bool
	)
	err := s.exec(ctx, "periods.deactivate", func(ctx context.Context) error {
		changed = false
		return s.tx(ctx, periodsLock, func(r Repository) error {
			var err error
			p, err = r.GetPeriod(ctx, id)
			if err != nil {
				return err
			}
			switch {
			case !p.IsActive && p.Status == models.PeriodCompleted:
				return nil
			case !p.IsActive && p.Status != models.PeriodActive:
				return fmt.Errorf("%w: %s → completed", apperr.ErrInvalidTransition, p.Status)
			}
			if err := r.SetPeriodState(ctx, id, false, models.PeriodCompleted); err != nil {
				return err
			}
			p.IsActive, p.Status, changed = false, models.PeriodCompleted, true
			return nil
		})
	}, zap.Int64("period_id", id))
	if err != nil {
		return models.Period{}, err
	}

	if changed {
		metrics.PeriodTransitions.WithLabelValues(string(models.PeriodCompleted)).Inc()
		s.log.Info("period completed", zap.Int64("period_id", id))
		s.notify.PeriodCompleted(ctx, p.Name)
	}
	return p, nil
}

// Cancel: только draft → cancelled.
func (s *PeriodService) Cancel(ctx context.Context, id int64) (models.Period, error) {
	var (
		p       models.Period
		changed bool
	)
	err := s.exec(ctx, "periods.cancel", func(ctx context.Context) error {
		changed = false
		return s.tx(ctx, periodsLock, func(r Repository) error {
			var err error
			p, err = r.GetPeriod(ctx, id)
			if err != nil {
				return err
			}
			if p.Status == models.PeriodCancelled {
				return nil
			}
			if p.Status != models.PeriodDraft {
				return fmt.Errorf("%w: %s → cancelled", apperr.ErrInvalidTransition, p.Status)
			}
			if err := r.SetPeriodState(ctx, id, false, models.PeriodCancelled); err != nil {
				return err
			}
			p.IsActive, p.Status, changed = false, models.PeriodCancelled, true
			return nil
		})
	}, zap.Int64("period_id", id))
	if err != nil {
		return models.Period{}, err
	}
	if changed {
		metrics.PeriodTransitions.WithLabelValues(string(models.PeriodCancelled)).Inc()
	}
	return p, nil
}

// Delete удаляет неактивный период. Оценки периода остаются в хранилище.
func (s *PeriodService) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, "periods.delete", func(ctx context.Context) error {
		return s.tx(ctx, periodsLock, func(r Repository) error {
			p, err := r.GetPeriod(ctx, id)
			if err != nil {
				return err
			}
			if p.IsActive {
				return apperr.ErrPeriodInUse
			}
			return r.DeletePeriod(ctx, id)
		})
	}, zap.Int64("period_id", id))
}

// ExpireOverdue завершает активный период, у которого прошла дата окончания.
// Возвращает id завершённого периода или 0.
func (s *PeriodService) ExpireOverdue(ctx context.Context) (int64, error) {
	active, err := s.Active(ctx)
	if err != nil || active == nil {
		return 0, err
	}
	if !active.Completed(s.now()) {
		return 0, nil
	}
	if _, err := s.Deactivate(ctx, active.ID); err != nil {
		return 0, err
	}
	return active.ID, nil
}

func (s *PeriodService) Get(ctx context.Context, id int64) (models.Period, error) {
	var p models.Period
	err := s.read(ctx, "periods.get", func(ctx context.Context) (err error) {
		p, err = s.repo.GetPeriod(ctx, id)
		return err
	})
	return p, err
}

// List — новые первыми.
func (s *PeriodService) List(ctx context.Context) ([]models.Period, error) {
	var list []models.Period
	err := s.read(ctx, "periods.list", func(ctx context.Context) (err error) {
		list, err = s.repo.ListPeriods(ctx)
		return err
	})
	return list, err
}

// Active — период с флагом is_active или nil. Попадает ли now в его окно,
// проверяет вызывающий через CurrentlyActive.
func (s *PeriodService) Active(ctx context.Context) (*models.Period, error) {
	var p *models.Period
	err := s.read(ctx, "periods.active", func(ctx context.Context) (err error) {
		p, err = s.repo.ActivePeriod(ctx)
		return err
	})
	return p, err
}
