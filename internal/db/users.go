package db

import (
	"context"
	"fmt"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
)

const userCols = `id, name, email, group_id, current_team_id, role, is_active, created_at`

func scanUser(sc scanner, u *models.User) error {
	var role string
	if err := sc.Scan(&u.ID, &u.Name, &u.Email, &u.GroupID, &u.CurrentTeam, &role, &u.IsActive, &u.CreatedAt); err != nil {
		return err
	}
	u.Role = models.Role(role)
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (name, email, group_id, current_team_id, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		u.Name, u.Email, u.GroupID, u.CurrentTeam, string(u.Role), u.IsActive, u.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isUnique(err) {
			return 0, fmt.Errorf("%w: %s", apperr.ErrDuplicateEmail, u.Email)
		}
		return 0, mapErr(err)
	}
	return id, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	row := s.q.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, &u); err != nil {
		return models.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) ListActiveStudents(ctx context.Context, groupID int64) ([]models.User, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+userCols+`
		FROM users
		WHERE group_id = $1 AND role = 'student' AND is_active = TRUE
		ORDER BY name, id`, groupID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) SetUserTeam(ctx context.Context, userID int64, teamID *int64) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET current_team_id = $1 WHERE id = $2`, teamID, userID)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) SetUserGroup(ctx context.Context, userID, groupID int64) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET group_id = $1 WHERE id = $2`, groupID, userID)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) SetUserActive(ctx context.Context, userID int64, active bool) error {
	res, err := s.q.ExecContext(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, active, userID)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) ClearCurrentTeam(ctx context.Context, teamIDs []int64) error {
	if len(teamIDs) == 0 {
		return nil
	}
	in, args := inList(1, teamIDs)
	_, err := s.q.ExecContext(ctx, `UPDATE users SET current_team_id = NULL WHERE current_team_id IN `+in, args...)
	return mapErr(err)
}
