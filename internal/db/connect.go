package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Open открывает БД и проверяет соединение. SQLite используется для dev и тестов:
// одно соединение, поэтому транзакции сериализуются сами собой.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	var drvName string
	switch dialect {
	case Postgres:
		drvName = "pgx"
	case SQLite:
		drvName = "sqlite"
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dialect)
	}

	database, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if dialect == SQLite {
		database.SetMaxOpenConns(1)
	} else {
		database.SetMaxOpenConns(20)
		database.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, err
	}
	return database, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "file:grader.db?mode=rwc"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
