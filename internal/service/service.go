// Package service — движок оценивания: реестр критериев, жизненный цикл
// периодов, распределение по командам, приём оценок и отчёты.
//
// Все пишущие операции проходят через core.exec: таймаут на попытку,
// повтор при конфликте и недоступности хранилища, метрики, логи и span.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Shuffler переставляет n элементов через swap. Должен давать равновероятную перестановку.
type Shuffler func(n int, swap func(i, j int))

// Notifier получает события жизненного цикла периодов. Ошибки доставки не
// влияют на операцию.
type Notifier interface {
	PeriodActivated(ctx context.Context, name string)
	PeriodCompleted(ctx context.Context, name string)
}

type nopNotifier struct{}

func (nopNotifier) PeriodActivated(context.Context, string) {}
func (nopNotifier) PeriodCompleted(context.Context, string) {}

type Options struct {
	Rule     EligibilityRule
	Shuffle  Shuffler
	Notifier Notifier
	Now      func() time.Time
	Tracer   trace.Tracer
}

// Services — все компоненты движка поверх одного Repository.
type Services struct {
	Criteria    *CriteriaService
	Periods     *PeriodService
	Groups      *GroupService
	Teams       *TeamService
	Evaluations *EvaluationService
	Reports     *ReportService
}

func New(repo Repository, log *zap.Logger, opts Options) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Rule == "" {
		opts.Rule = SameGroup
	}
	if opts.Shuffle == nil {
		opts.Shuffle = UniformShuffle
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/Spok95/group-grader/internal/service")
	}
	locks := NewKeyLocks()

	mk := func(name string) core {
		return core{repo: repo, log: log.Named(name), now: opts.Now, tracer: opts.Tracer, locks: locks}
	}

	teams := &TeamService{core: mk("teams"), shuffle: opts.Shuffle}
	return &Services{
		Criteria:    &CriteriaService{core: mk("criteria")},
		Periods:     &PeriodService{core: mk("periods"), notify: opts.Notifier},
		Groups:      &GroupService{core: mk("groups")},
		Teams:       teams,
		Evaluations: &EvaluationService{core: mk("evaluations"), rule: opts.Rule},
		Reports:     &ReportService{core: mk("reports")},
	}
}
