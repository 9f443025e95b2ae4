package testdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/Spok95/group-grader/internal/db"
)

type DBHandle struct {
	DB      *sql.DB
	Store   *db.Store
	Dialect db.Dialect
	cancel  func()
	stop    func(context.Context) error
}

func (h *DBHandle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.stop != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.stop(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}
