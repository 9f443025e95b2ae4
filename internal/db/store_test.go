package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/db"
	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
	"github.com/Spok95/group-grader/internal/testutil/testdb"
)

func mustGroup(t *testing.T, s *db.Store, name string) int64 {
	t.Helper()
	id, err := s.CreateGroup(context.Background(), models.Group{Name: name, MaxStudents: 30, IsActive: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return id
}

func mustStudent(t *testing.T, s *db.Store, name, email string, groupID int64) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), models.User{
		Name: name, Email: email, GroupID: groupID, Role: models.Student, IsActive: true, CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

func TestGroups_UniqueNameAndCount(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	gid := mustGroup(t, h.Store, "ИВТ-1")
	if _, err := h.Store.CreateGroup(ctx, models.Group{Name: "ИВТ-1", MaxStudents: 10, IsActive: true, CreatedAt: time.Now()}); !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("ожидали ErrDuplicateName, получили %v", err)
	}

	mustStudent(t, h.Store, "Анна", "anna@example.com", gid)
	bob := mustStudent(t, h.Store, "Борис", "bob@example.com", gid)
	if err := h.Store.SetUserActive(ctx, bob, false); err != nil {
		t.Fatal(err)
	}

	g, err := h.Store.GetGroup(ctx, gid)
	if err != nil {
		t.Fatal(err)
	}
	if g.CurrentStudents != 1 {
		t.Fatalf("current students = %d, want 1 (неактивные не считаются)", g.CurrentStudents)
	}
	n, err := h.Store.CountGroupUsers(ctx, gid)
	if err != nil || n != 2 {
		t.Fatalf("count users = %d, %v", n, err)
	}

	if _, err := h.Store.CreateUser(ctx, models.User{Name: "Дубль", Email: "anna@example.com", GroupID: gid, Role: models.Student, CreatedAt: time.Now()}); !errors.Is(err, apperr.ErrDuplicateEmail) {
		t.Fatalf("ожидали ErrDuplicateEmail, получили %v", err)
	}
	if _, err := h.Store.GetGroup(ctx, 9999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestTeams_MembersAndDeactivate(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	gid := mustGroup(t, h.Store, "Группа")
	a := mustStudent(t, h.Store, "A", "a@example.com", gid)
	b := mustStudent(t, h.Store, "B", "b@example.com", gid)

	teamID, err := h.Store.CreateTeam(ctx, models.Team{Name: "Team 1", GroupID: gid, Members: []int64{b, a}, IsActive: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	team, err := h.Store.GetTeam(ctx, teamID)
	if err != nil {
		t.Fatal(err)
	}
	if team.MemberCount() != 2 || !team.HasMember(a) || !team.HasMember(b) {
		t.Fatalf("members = %v", team.Members)
	}

	added, err := h.Store.AddTeamMember(ctx, teamID, a)
	if err != nil || added {
		t.Fatalf("повторное добавление: added=%v err=%v", added, err)
	}

	if err := h.Store.SetUserTeam(ctx, a, &teamID); err != nil {
		t.Fatal(err)
	}
	ids, err := h.Store.DeactivateGroupTeams(ctx, gid)
	if err != nil || len(ids) != 1 || ids[0] != teamID {
		t.Fatalf("deactivate = %v, %v", ids, err)
	}
	if err := h.Store.ClearCurrentTeam(ctx, ids); err != nil {
		t.Fatal(err)
	}
	u, err := h.Store.GetUser(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if u.HasTeam() {
		t.Fatalf("currentTeam должен быть сброшен, got %v", *u.CurrentTeam)
	}

	active, err := h.Store.ListTeams(ctx, []int64{gid}, true)
	if err != nil || len(active) != 0 {
		t.Fatalf("active teams = %v, %v", active, err)
	}
	all, err := h.Store.ListTeams(ctx, []int64{gid}, false)
	if err != nil || len(all) != 1 || all[0].MemberCount() != 2 {
		t.Fatalf("all teams = %+v, %v", all, err)
	}
}

func TestHistory_OpenClose(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	gid := mustGroup(t, h.Store, "Группа")
	a := mustStudent(t, h.Store, "A", "a@example.com", gid)
	teamID, err := h.Store.CreateTeam(ctx, models.Team{Name: "Team 1", GroupID: gid, Members: []int64{a}, IsActive: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	if _, err := h.Store.OpenHistory(ctx, models.TeamHistory{UserID: a, TeamID: teamID, GroupID: gid, StartDate: start}); err != nil {
		t.Fatal(err)
	}
	end := start.Add(48 * time.Hour)
	if err := h.Store.CloseTeamsHistory(ctx, []int64{teamID}, end); err != nil {
		t.Fatal(err)
	}

	list, err := h.Store.ListHistory(ctx, a, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("history = %+v", list)
	}
	rec := list[0]
	if rec.IsActive || rec.EndDate == nil || !rec.EndDate.Equal(end) {
		t.Fatalf("запись не закрыта: %+v", rec)
	}
	if rec.TeamName != "Team 1" || rec.GroupName != "Группа" {
		t.Fatalf("names = %q/%q", rec.TeamName, rec.GroupName)
	}

	pid := int64(42)
	filtered, err := h.Store.ListHistory(ctx, a, &pid)
	if err != nil || len(filtered) != 0 {
		t.Fatalf("filter by period = %v, %v", filtered, err)
	}
}

func TestCriteria_OrderAndWeightSum(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	mk := func(name string, weight int, active bool) int64 {
		id, err := h.Store.CreateCriterion(ctx, models.Criterion{Name: name, Weight: weight, MaxScore: 10, IsActive: active, CreatedAt: time.Now()})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	low := mk("Оформление", 20, true)
	high := mk("Качество", 50, true)
	mk("Архив", 30, false)

	list, err := h.Store.ListCriteria(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != high || list[1].ID != low {
		t.Fatalf("порядок критериев: %+v", list)
	}

	sum, err := h.Store.ActiveWeightSum(ctx, 0)
	if err != nil || sum != 70 {
		t.Fatalf("sum = %d, %v", sum, err)
	}
	sum, err = h.Store.ActiveWeightSum(ctx, high)
	if err != nil || sum != 20 {
		t.Fatalf("sum without high = %d, %v", sum, err)
	}
}

func TestPeriods_SingleActive(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()
	gid := mustGroup(t, h.Store, "Группа")

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name string) int64 {
		id, err := h.Store.CreatePeriod(ctx, models.Period{
			Name: name, StartDate: start, EndDate: start.AddDate(0, 0, 30),
			Status: models.PeriodDraft, Groups: []int64{gid}, CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	p0, p1 := mk("P0"), mk("P1")

	if err := h.Store.SetPeriodState(ctx, p0, true, models.PeriodActive); err != nil {
		t.Fatal(err)
	}
	// второй активный период отклоняется уникальным индексом
	if err := h.Store.SetPeriodState(ctx, p1, true, models.PeriodActive); !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("ожидали конфликт, получили %v", err)
	}

	err := h.Store.InTx(ctx, func(r service.Repository) error {
		if _, err := r.CompleteActivePeriods(ctx, p1); err != nil {
			return err
		}
		return r.SetPeriodState(ctx, p1, true, models.PeriodActive)
	})
	if err != nil {
		t.Fatal(err)
	}

	ap, err := h.Store.ActivePeriod(ctx)
	if err != nil || ap == nil || ap.ID != p1 {
		t.Fatalf("active = %+v, %v", ap, err)
	}
	if !ap.HasGroup(gid) {
		t.Fatalf("groups = %v", ap.Groups)
	}
	old, err := h.Store.GetPeriod(ctx, p0)
	if err != nil {
		t.Fatal(err)
	}
	if old.IsActive || old.Status != models.PeriodCompleted {
		t.Fatalf("P0 = %+v", old)
	}
}

func TestEvaluations_Duplicate(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	gid := mustGroup(t, h.Store, "Группа")
	a := mustStudent(t, h.Store, "A", "a@example.com", gid)
	teamID, err := h.Store.CreateTeam(ctx, models.Team{Name: "Team 2", GroupID: gid, IsActive: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	critID, err := h.Store.CreateCriterion(ctx, models.Criterion{Name: "Качество", Weight: 100, MaxScore: 10, IsActive: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatal(err)
	}

	ev := models.Evaluation{
		EvaluatorID: a, TeamID: teamID, PeriodID: 7,
		Criteria:   []models.CriterionScore{{CriterionID: critID, Score: 8}},
		TotalScore: 80, IsSubmitted: true, CreatedAt: time.Now(),
	}
	id, err := h.Store.CreateEvaluation(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Store.CreateEvaluation(ctx, ev); !errors.Is(err, apperr.ErrDuplicateEvaluation) {
		t.Fatalf("ожидали ErrDuplicateEvaluation, получили %v", err)
	}

	exists, err := h.Store.EvaluationExists(ctx, a, teamID, 7)
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v", exists, err)
	}
	got, err := h.Store.GetEvaluation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Criteria) != 1 || got.Criteria[0].Score != 8 || got.TotalScore != 80 {
		t.Fatalf("evaluation = %+v", got)
	}

	rows, err := h.Store.ListEvaluationRows(ctx, 7)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows = %v, %v", rows, err)
	}
	if rows[0].EvaluatorName != "A" || rows[0].TeamName != "Team 2" || rows[0].GroupName != "Группа" {
		t.Fatalf("row = %+v", rows[0])
	}
	teams, err := h.Store.EvaluatedTeamIDs(ctx, a, 7)
	if err != nil || len(teams) != 1 || teams[0] != teamID {
		t.Fatalf("evaluated = %v, %v", teams, err)
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := h.Store.InTx(ctx, func(r service.Repository) error {
		if _, err := r.CreateGroup(ctx, models.Group{Name: "Temp", MaxStudents: 5, IsActive: true, CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	groups, err := h.Store.ListGroups(ctx, false)
	if err != nil || len(groups) != 0 {
		t.Fatalf("группа должна откатиться: %v, %v", groups, err)
	}
	if err := h.Store.Lock(ctx, "x"); err == nil {
		t.Fatal("Lock вне транзакции должен вернуть ошибку")
	}
}

func TestSeed_Idempotent(t *testing.T) {
	h := testdb.SQLite(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := db.Seed(ctx, h.DB); err != nil {
			t.Fatalf("seed #%d: %v", i+1, err)
		}
	}
	groups, err := h.Store.ListGroups(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
}
