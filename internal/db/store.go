package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/service"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store — реализация service.Repository поверх database/sql.
type Store struct {
	db      *sql.DB
	q       querier
	dialect Dialect
	inTx    bool
}

var _ service.Repository = (*Store)(nil)

func New(database *sql.DB, dialect Dialect) *Store {
	return &Store{db: database, q: database, dialect: dialect}
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) InTx(ctx context.Context, fn func(service.Repository) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, q: tx, dialect: s.dialect, inTx: true}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

// Lock — advisory-блокировка Postgres до конца транзакции. В SQLite писатель и так один.
func (s *Store) Lock(ctx context.Context, key string) error {
	if !s.inTx {
		return errors.New("db: lock outside transaction")
	}
	if s.dialect != Postgres {
		return nil
	}
	_, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID(key))
	return mapErr(err)
}

func lockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64())
}

// inList строит "($n,$n+1,...)" для IN: массивы pgx в SQLite не работают.
func inList(start int, ids []int64) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(ids))
	b.WriteByte('(')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(start + i))
		args = append(args, id)
	}
	b.WriteByte(')')
	return b.String(), args
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

// mapErr переводит ошибки драйверов в таксономию apperr.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}

	if code, ok := pgCode(err); ok {
		switch {
		case code == "40001" || code == "40P01" || code == "23505":
			return fmt.Errorf("%w: %v", apperr.ErrConcurrencyConflict, err)
		case strings.HasPrefix(code, "08") || code == "57P01" || code == "57P03" || code == "53300":
			return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
		}
		return err
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", apperr.ErrConcurrencyConflict, err)
		case sqlite3.SQLITE_CONSTRAINT:
			if isUnique(err) {
				return fmt.Errorf("%w: %v", apperr.ErrConcurrencyConflict, err)
			}
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return err
}

func pgCode(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}

// isUnique — нарушение UNIQUE/PRIMARY KEY на любом из драйверов.
func isUnique(err error) bool {
	if code, ok := pgCode(err); ok {
		return code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		c := sqErr.Code()
		return c == sqlite3.SQLITE_CONSTRAINT_UNIQUE || c == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(c&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(err.Error(), "UNIQUE"))
	}
	return false
}
