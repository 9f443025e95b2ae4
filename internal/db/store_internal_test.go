package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/Spok95/group-grader/internal/apperr"
)

func TestInList(t *testing.T) {
	in, args := inList(3, []int64{10, 20, 30})
	if in != "($3,$4,$5)" {
		t.Fatalf("in = %q", in)
	}
	if len(args) != 3 || args[2].(int64) != 30 {
		t.Fatalf("args = %v", args)
	}
}

func TestMapErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, apperr.ErrNotFound},
		{"deadline", context.DeadlineExceeded, apperr.ErrStoreUnavailable},
		{"bad conn", fmt.Errorf("exec: %w", sql.ErrConnDone), apperr.ErrStoreUnavailable},
		{"pgx serialization", &pgconn.PgError{Code: "40001"}, apperr.ErrConcurrencyConflict},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, apperr.ErrConcurrencyConflict},
		{"pq unique", &pq.Error{Code: "23505"}, apperr.ErrConcurrencyConflict},
		{"pgx admin shutdown", &pgconn.PgError{Code: "57P01"}, apperr.ErrStoreUnavailable},
		{"pgx connection", &pgconn.PgError{Code: "08006"}, apperr.ErrStoreUnavailable},
		{"already mapped", apperr.ErrDuplicateEvaluation, apperr.ErrDuplicateEvaluation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := mapErr(c.err); !errors.Is(got, c.want) {
				t.Fatalf("mapErr(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}

	if mapErr(nil) != nil {
		t.Fatal("nil должен остаться nil")
	}
	if err := mapErr(context.Canceled); !errors.Is(err, context.Canceled) || apperr.Retryable(err) {
		t.Fatalf("отмена не должна превращаться в повторяемую ошибку: %v", err)
	}
	plain := &pgconn.PgError{Code: "23503"}
	if got := mapErr(plain); apperr.KindOf(got) != apperr.KindUnknown {
		t.Fatalf("FK violation не должен маппиться: %v", got)
	}
}

func TestIsUnique(t *testing.T) {
	if !isUnique(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("pgx 23505")
	}
	if !isUnique(fmt.Errorf("wrap: %w", &pq.Error{Code: "23505"})) {
		t.Fatal("pq 23505")
	}
	if isUnique(errors.New("UNIQUE constraint failed")) {
		t.Fatal("строка без типа драйвера не считается")
	}
}

func TestLockID_Stable(t *testing.T) {
	if lockID("group:1") != lockID("group:1") {
		t.Fatal("lockID должен быть детерминированным")
	}
	if lockID("group:1") == lockID("group:2") {
		t.Fatal("разные ключи дали одинаковый id")
	}
}
