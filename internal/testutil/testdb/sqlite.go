package testdb

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/Spok95/group-grader/internal/db"
)

// StartSQLite поднимает отдельную in-memory SQLite с применёнными миграциями.
// Контейнер не нужен, поэтому работает в обычном go test.
func StartSQLite(ctx context.Context) (*DBHandle, error) {
	dsn := "file:grader-" + uuid.NewString() + "?mode=memory&cache=shared"
	database, err := db.Open(ctx, db.SQLite, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database, db.SQLite, nil); err != nil {
		_ = database.Close()
		return nil, err
	}
	return &DBHandle{
		DB:      database,
		Store:   db.New(database, db.SQLite),
		Dialect: db.SQLite,
	}, nil
}

// SQLite — StartSQLite для тестов: падает сразу и закрывает базу в Cleanup.
func SQLite(t testing.TB) *DBHandle {
	t.Helper()
	h, err := StartSQLite(context.Background())
	if err != nil {
		t.Fatalf("testdb: %v", err)
	}
	t.Cleanup(h.Close)
	return h
}
