package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate накатывает миграции goose для выбранного диалекта.
func Migrate(ctx context.Context, database *sql.DB, dialect Dialect, log *zap.Logger) error {
	var (
		gd  goose.Dialect
		dir string
	)
	switch dialect {
	case Postgres:
		gd, dir = goose.DialectPostgres, "migrations/postgres"
	case SQLite:
		gd, dir = goose.DialectSQLite3, "migrations/sqlite"
	default:
		return fmt.Errorf("unsupported driver: %s", dialect)
	}

	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gd, database, sub)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if log != nil {
		for _, r := range results {
			log.Info("migration applied", zap.String("source", r.Source.Path), zap.Duration("took", r.Duration))
		}
	}
	return nil
}
