package db

import (
	"context"
	"fmt"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
)

// current_students считаем на лету: хранимый счётчик устаревает.
const groupSelect = `
	SELECT g.id, g.name, g.description, g.max_students, g.is_active, g.created_by, g.created_at,
	       (SELECT COUNT(*) FROM users u
	        WHERE u.group_id = g.id AND u.role = 'student' AND u.is_active = TRUE) AS current_students
	FROM student_groups g`

func scanGroup(sc scanner, g *models.Group) error {
	return sc.Scan(&g.ID, &g.Name, &g.Description, &g.MaxStudents, &g.IsActive, &g.CreatedBy, &g.CreatedAt, &g.CurrentStudents)
}

func (s *Store) CreateGroup(ctx context.Context, g models.Group) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO student_groups (name, description, max_students, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		g.Name, g.Description, g.MaxStudents, g.IsActive, g.CreatedBy, g.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isUnique(err) {
			return 0, fmt.Errorf("%w: %s", apperr.ErrDuplicateName, g.Name)
		}
		return 0, mapErr(err)
	}
	return id, nil
}

func (s *Store) GetGroup(ctx context.Context, id int64) (models.Group, error) {
	var g models.Group
	if err := scanGroup(s.q.QueryRowContext(ctx, groupSelect+` WHERE g.id = $1`, id), &g); err != nil {
		return models.Group{}, mapErr(err)
	}
	return g, nil
}

func (s *Store) ListGroups(ctx context.Context, activeOnly bool) ([]models.Group, error) {
	query := groupSelect
	if activeOnly {
		query += ` WHERE g.is_active = TRUE`
	}
	query += ` ORDER BY g.name`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Group
	for rows.Next() {
		var g models.Group
		if err := scanGroup(rows, &g); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, g)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) UpdateGroup(ctx context.Context, g models.Group) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE student_groups SET name = $1, description = $2, max_students = $3, is_active = $4
		WHERE id = $5`,
		g.Name, g.Description, g.MaxStudents, g.IsActive, g.ID)
	if err != nil {
		if isUnique(err) {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateName, g.Name)
		}
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM student_groups WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) CountGroupUsers(ctx context.Context, groupID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE group_id = $1`, groupID).Scan(&n)
	return n, mapErr(err)
}
