package service_test

import (
	"errors"
	"testing"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/service"
)

func TestCriteria_WeightBudget(t *testing.T) {
	e := newEnv(t, service.Options{})

	a := e.criterion("Качество кода", 60, 100)
	e.criterion("Презентация", 40, 50)

	_, err := e.svc.Criteria.Create(e.ctx, service.CriterionInput{Name: "Лишний", Weight: 1})
	if !errors.Is(err, apperr.ErrWeightBudgetExceeded) {
		t.Fatalf("ожидали ErrWeightBudgetExceeded, получили %v", err)
	}
	list, err := e.svc.Criteria.List(e.ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("отказ не должен ничего записывать: %d критериев", len(list))
	}
	if list[0].ID != a.ID {
		t.Fatalf("список по убыванию веса: %+v", list)
	}

	t.Run("update_over_budget", func(t *testing.T) {
		w := 61
		if _, err := e.svc.Criteria.Update(e.ctx, a.ID, service.CriterionPatch{Weight: &w}); !errors.Is(err, apperr.ErrWeightBudgetExceeded) {
			t.Fatalf("ожидали ErrWeightBudgetExceeded, получили %v", err)
		}
		got, err := e.svc.Criteria.Get(e.ctx, a.ID)
		if err != nil || got.Weight != 60 {
			t.Fatalf("вес не должен измениться: %+v, %v", got, err)
		}
	})

	t.Run("deactivate_frees_budget", func(t *testing.T) {
		if _, err := e.svc.Criteria.Deactivate(e.ctx, a.ID); err != nil {
			t.Fatal(err)
		}
		e.criterion("Командная работа", 60, 10)

		// вернуть 60 уже нельзя: 40 + 60 + 60 > 100
		if _, err := e.svc.Criteria.Activate(e.ctx, a.ID); !errors.Is(err, apperr.ErrWeightBudgetExceeded) {
			t.Fatalf("ожидали ErrWeightBudgetExceeded, получили %v", err)
		}
		active, err := e.svc.Criteria.List(e.ctx, true)
		if err != nil || len(active) != 2 {
			t.Fatalf("active = %v, %v", active, err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		bad := []service.CriterionInput{
			{Name: "X", Weight: 10},
			{Name: "Вес", Weight: 101},
			{Name: "Балл", Weight: 0, MaxScore: 101},
			{Name: "Отрицательный", Weight: -1},
		}
		for _, in := range bad {
			if _, err := e.svc.Criteria.Create(e.ctx, in); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("%+v: ожидали ErrInvalidInput, получили %v", in, err)
			}
		}
	})

	t.Run("default_max_score", func(t *testing.T) {
		c := e.criterion("Без максимума", 0, 0)
		if c.MaxScore != 100 {
			t.Fatalf("max score = %d", c.MaxScore)
		}
	})
}
