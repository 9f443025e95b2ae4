package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
	"github.com/Spok95/group-grader/internal/testutil/testdb"
)

// noShuffle оставляет порядок студентов (по имени), чтобы состав команд был предсказуем.
func noShuffle(int, func(i, j int)) {}

type env struct {
	t   *testing.T
	ctx context.Context
	h   *testdb.DBHandle
	svc *service.Services
	seq int
}

func newEnv(t *testing.T, opts service.Options) *env {
	t.Helper()
	return newEnvOn(t, testdb.SQLite(t), opts)
}

func newEnvOn(t *testing.T, h *testdb.DBHandle, opts service.Options) *env {
	t.Helper()
	if opts.Shuffle == nil {
		opts.Shuffle = noShuffle
	}
	return &env{t: t, ctx: context.Background(), h: h, svc: service.New(h.Store, nil, opts)}
}

func (e *env) group(name string, maxStudents int) models.Group {
	e.t.Helper()
	g, err := e.svc.Groups.Create(e.ctx, service.GroupInput{Name: name, MaxStudents: maxStudents})
	if err != nil {
		e.t.Fatalf("create group %s: %v", name, err)
	}
	return g
}

func (e *env) students(groupID int64, n int) []models.User {
	e.t.Helper()
	out := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		e.seq++
		u, err := e.svc.Groups.RegisterStudent(e.ctx, service.StudentInput{
			Name:    fmt.Sprintf("Студент %02d", e.seq),
			Email:   fmt.Sprintf("s%d@example.com", e.seq),
			GroupID: groupID,
		})
		if err != nil {
			e.t.Fatalf("register student: %v", err)
		}
		out = append(out, u)
	}
	return out
}

func (e *env) criterion(name string, weight, maxScore int) models.Criterion {
	e.t.Helper()
	c, err := e.svc.Criteria.Create(e.ctx, service.CriterionInput{Name: name, Weight: weight, MaxScore: maxScore})
	if err != nil {
		e.t.Fatalf("create criterion %s: %v", name, err)
	}
	return c
}

// period создаёт draft-период, окно которого содержит текущий момент.
func (e *env) period(name string, groups ...int64) models.Period {
	e.t.Helper()
	now := time.Now()
	p, err := e.svc.Periods.Create(e.ctx, service.PeriodInput{
		Name:      name,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(24 * time.Hour),
		Groups:    groups,
	})
	if err != nil {
		e.t.Fatalf("create period %s: %v", name, err)
	}
	return p
}

func (e *env) activePeriod(name string, groups ...int64) models.Period {
	e.t.Helper()
	p, err := e.svc.Periods.Activate(e.ctx, e.period(name, groups...).ID)
	if err != nil {
		e.t.Fatalf("activate %s: %v", name, err)
	}
	return p
}

func (e *env) redistribute(groupID int64, size int) []models.Team {
	e.t.Helper()
	teams, err := e.svc.Teams.Redistribute(e.ctx, groupID, size, nil)
	if err != nil {
		e.t.Fatalf("redistribute: %v", err)
	}
	return teams
}

func (e *env) user(id int64) models.User {
	e.t.Helper()
	u, err := e.h.Store.GetUser(e.ctx, id)
	if err != nil {
		e.t.Fatalf("get user %d: %v", id, err)
	}
	return u
}
