package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
	"github.com/Spok95/group-grader/internal/service"
)

func TestGroups_CreateUpdate(t *testing.T) {
	e := newEnv(t, service.Options{})
	g := e.group("ИВТ-1", 3)

	if _, err := e.svc.Groups.Create(e.ctx, service.GroupInput{Name: "ИВТ-1"}); !errors.Is(err, apperr.ErrDuplicateName) {
		t.Fatalf("дубликат имени: %v", err)
	}
	if _, err := e.svc.Groups.Create(e.ctx, service.GroupInput{Name: "Большая", MaxStudents: 101}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("лимит > 100: %v", err)
	}

	e.students(g.ID, 3)
	if _, err := e.svc.Groups.RegisterStudent(e.ctx, service.StudentInput{Name: "Лишний", Email: "extra@example.com", GroupID: g.ID}); !errors.Is(err, apperr.ErrGroupFull) {
		t.Fatalf("полная группа: %v", err)
	}

	two := 2
	if _, err := e.svc.Groups.Update(e.ctx, g.ID, service.GroupUpdate{MaxStudents: &two}); !errors.Is(err, apperr.ErrGroupCapacity) {
		t.Fatalf("лимит ниже текущего: %v", err)
	}
	five, name := 5, "ИВТ-1А"
	got, err := e.svc.Groups.Update(e.ctx, g.ID, service.GroupUpdate{MaxStudents: &five, Name: &name})
	if err != nil || got.MaxStudents != 5 || got.Name != name || got.CurrentStudents != 3 {
		t.Fatalf("update = %+v, %v", got, err)
	}

	off := false
	if _, err := e.svc.Groups.Update(e.ctx, g.ID, service.GroupUpdate{IsActive: &off}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Groups.RegisterStudent(e.ctx, service.StudentInput{Name: "Поздний", Email: "late@example.com", GroupID: g.ID}); !errors.Is(err, apperr.ErrGroupInactive) {
		t.Fatalf("неактивная группа: %v", err)
	}
}

func TestGroups_RegisterStudentValidation(t *testing.T) {
	e := newEnv(t, service.Options{})
	g := e.group("ИВТ-1", 30)

	u, err := e.svc.Groups.RegisterStudent(e.ctx, service.StudentInput{Name: "Анна", Email: " Anna@Example.com ", GroupID: g.ID})
	if err != nil || u.Email != "anna@example.com" {
		t.Fatalf("register = %+v, %v", u, err)
	}
	if _, err := e.svc.Groups.RegisterStudent(e.ctx, service.StudentInput{Name: "Анна 2", Email: "anna@example.com", GroupID: g.ID}); !errors.Is(err, apperr.ErrDuplicateEmail) {
		t.Fatalf("дубликат email: %v", err)
	}
	if _, err := e.svc.Groups.RegisterStudent(e.ctx, service.StudentInput{Name: "Борис", Email: "not-an-email", GroupID: g.ID}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("кривой email: %v", err)
	}

	list, err := e.svc.Groups.Students(e.ctx, g.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("students = %v, %v", list, err)
	}
}

func TestGroups_Delete(t *testing.T) {
	e := newEnv(t, service.Options{})
	empty := e.group("Пустая", 30)
	busy := e.group("Занятая", 30)
	e.students(busy.ID, 1)

	if err := e.svc.Groups.Delete(e.ctx, busy.ID); !errors.Is(err, apperr.ErrGroupInUse) {
		t.Fatalf("группа со студентами: %v", err)
	}
	if err := e.svc.Groups.Delete(e.ctx, empty.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Groups.Get(e.ctx, empty.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("после удаления: %v", err)
	}
}

func TestGroups_MoveAndDeactivateStudent(t *testing.T) {
	e := newEnv(t, service.Options{})
	g1 := e.group("ИВТ-1", 30)
	g2 := e.group("ИВТ-2", 1)
	st := e.students(g1.ID, 3)
	e.redistribute(g1.ID, 3)

	moved, err := e.svc.Groups.MoveStudent(e.ctx, st[0].ID, g2.ID)
	if err != nil || moved.GroupID != g2.ID || moved.HasTeam() {
		t.Fatalf("move = %+v, %v", moved, err)
	}
	if u := e.user(st[0].ID); u.GroupID != g2.ID || u.HasTeam() {
		t.Fatalf("stored = %+v", u)
	}
	if _, err := e.svc.Groups.MoveStudent(e.ctx, st[1].ID, g2.ID); !errors.Is(err, apperr.ErrGroupFull) {
		t.Fatalf("полная группа: %v", err)
	}

	off, err := e.svc.Groups.SetStudentActive(e.ctx, st[1].ID, false)
	if err != nil || off.IsActive || off.HasTeam() {
		t.Fatalf("deactivate = %+v, %v", off, err)
	}
	teams, err := e.svc.Teams.ListByGroup(e.ctx, g1.ID)
	if err != nil || len(teams) != 1 || teams[0].MemberCount() != 1 {
		t.Fatalf("в команде должен остаться один студент: %+v, %v", teams, err)
	}
	on, err := e.svc.Groups.SetStudentActive(e.ctx, st[1].ID, true)
	if err != nil || !on.IsActive {
		t.Fatalf("activate = %+v, %v", on, err)
	}
}

// staleUserRepo отдаёт устаревшую группу пользователя при чтении вне
// транзакции: так выглядит перевод, случившийся между чтением и блокировкой.
type staleUserRepo struct {
	service.Repository
	group int64
	stale int
	reads int
}

func (r *staleUserRepo) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, err := r.Repository.GetUser(ctx, id)
	r.reads++
	if err == nil && r.stale > 0 {
		r.stale--
		u.GroupID = r.group
	}
	return u, err
}

func TestGroups_MoveStudentRelocksAfterConcurrentMove(t *testing.T) {
	e := newEnv(t, service.Options{})
	g1 := e.group("ИВТ-1", 30)
	g2 := e.group("ИВТ-2", 30)
	g3 := e.group("ИВТ-3", 30)
	st := e.students(g1.ID, 1)[0]

	repo := &staleUserRepo{Repository: e.h.Store, group: g3.ID, stale: 1}
	svc := service.New(repo, nil, service.Options{})

	moved, err := svc.Groups.MoveStudent(e.ctx, st.ID, g2.ID)
	if err != nil || moved.GroupID != g2.ID {
		t.Fatalf("move = %+v, %v", moved, err)
	}
	if repo.reads != 2 {
		t.Fatalf("ожидали повтор с перечитанной группой, чтений: %d", repo.reads)
	}
	if u := e.user(st.ID); u.GroupID != g2.ID {
		t.Fatalf("stored group = %d", u.GroupID)
	}
}

func TestGroups_SetStudentActiveRejectsWrongGroupLock(t *testing.T) {
	e := newEnv(t, service.Options{})
	g1 := e.group("ИВТ-1", 30)
	g2 := e.group("ИВТ-2", 30)
	st := e.students(g1.ID, 1)[0]

	// группа устарела на каждой попытке: повторы исчерпаны, запись не выполнена
	repo := &staleUserRepo{Repository: e.h.Store, group: g2.ID, stale: 100}
	svc := service.New(repo, nil, service.Options{})

	if _, err := svc.Groups.SetStudentActive(e.ctx, st.ID, false); !errors.Is(err, apperr.ErrConcurrencyConflict) {
		t.Fatalf("err = %v, want concurrency conflict", err)
	}
	if u := e.user(st.ID); !u.IsActive {
		t.Fatal("студент не должен быть выключен под чужой блокировкой")
	}
}
