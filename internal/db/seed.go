package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type seedGroup struct {
	name string
	max  int
}

// Seed создаёт служебную группу администраторов, администратора и две
// учебные группы. Повторный запуск ничего не меняет.
func Seed(ctx context.Context, database *sql.DB) error {
	now := time.Now().UTC()
	groups := []seedGroup{
		{name: "Admins", max: 10},
		{name: "Group 1", max: 30},
		{name: "Group 2", max: 25},
	}
	for _, g := range groups {
		_, err := database.ExecContext(ctx, `
			INSERT INTO student_groups (name, description, max_students, is_active, created_at)
			VALUES ($1, '', $2, TRUE, $3)
			ON CONFLICT (name) DO NOTHING`, g.name, g.max, now)
		if err != nil {
			return fmt.Errorf("seed group %s: %w", g.name, err)
		}
	}

	var adminsID int64
	if err := database.QueryRowContext(ctx, `SELECT id FROM student_groups WHERE name = $1`, "Admins").Scan(&adminsID); err != nil {
		return fmt.Errorf("seed: admins group: %w", err)
	}
	_, err := database.ExecContext(ctx, `
		INSERT INTO users (name, email, group_id, role, is_active, created_at)
		VALUES ($1, $2, $3, 'admin', TRUE, $4)
		ON CONFLICT (email) DO NOTHING`, "Administrator", "admin@example.com", adminsID, now)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}
