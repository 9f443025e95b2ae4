package db

import (
	"context"
	"time"

	"github.com/Spok95/group-grader/internal/models"
)

const teamCols = `id, name, group_id, is_active, created_by, created_at`

func scanTeam(sc scanner, t *models.Team) error {
	return sc.Scan(&t.ID, &t.Name, &t.GroupID, &t.IsActive, &t.CreatedBy, &t.CreatedAt)
}

func (s *Store) CreateTeam(ctx context.Context, t models.Team) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO teams (name, group_id, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		t.Name, t.GroupID, t.IsActive, t.CreatedBy, t.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	for _, uid := range t.Members {
		if _, err := s.AddTeamMember(ctx, id, uid); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (s *Store) GetTeam(ctx context.Context, id int64) (models.Team, error) {
	var t models.Team
	if err := scanTeam(s.q.QueryRowContext(ctx, `SELECT `+teamCols+` FROM teams WHERE id = $1`, id), &t); err != nil {
		return models.Team{}, mapErr(err)
	}
	members, err := s.loadMembers(ctx, []int64{id})
	if err != nil {
		return models.Team{}, err
	}
	t.Members = members[id]
	return t, nil
}

func (s *Store) ListTeams(ctx context.Context, groupIDs []int64, activeOnly bool) ([]models.Team, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	in, args := inList(1, groupIDs)
	query := `SELECT ` + teamCols + ` FROM teams WHERE group_id IN ` + in
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	var (
		out []models.Team
		ids []int64
	)
	for rows.Next() {
		var t models.Team
		if err := scanTeam(rows, &t); err != nil {
			_ = rows.Close()
			return nil, mapErr(err)
		}
		out = append(out, t)
		ids = append(ids, t.ID)
	}
	// закрываем до следующего запроса: у SQLite одно соединение
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	members, err := s.loadMembers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Members = members[out[i].ID]
	}
	return out, nil
}

func (s *Store) loadMembers(ctx context.Context, teamIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}
	in, args := inList(1, teamIDs)
	rows, err := s.q.QueryContext(ctx, `
		SELECT team_id, user_id FROM team_members
		WHERE team_id IN `+in+`
		ORDER BY team_id, user_id`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var teamID, userID int64
		if err := rows.Scan(&teamID, &userID); err != nil {
			return nil, mapErr(err)
		}
		out[teamID] = append(out[teamID], userID)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) RenameTeam(ctx context.Context, id int64, name string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE teams SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) DeactivateGroupTeams(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM teams WHERE group_id = $1 AND is_active = TRUE ORDER BY id`, groupID)
	if err != nil {
		return nil, mapErr(err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, mapErr(err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	in, args := inList(1, ids)
	if _, err := s.q.ExecContext(ctx, `UPDATE teams SET is_active = FALSE WHERE id IN `+in, args...); err != nil {
		return nil, mapErr(err)
	}
	return ids, nil
}

func (s *Store) DeleteGroupTeams(ctx context.Context, groupID int64) error {
	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM team_members WHERE team_id IN (SELECT id FROM teams WHERE group_id = $1)`, groupID); err != nil {
		return mapErr(err)
	}
	_, err := s.q.ExecContext(ctx, `DELETE FROM teams WHERE group_id = $1`, groupID)
	return mapErr(err)
}

func (s *Store) AddTeamMember(ctx context.Context, teamID, userID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, teamID, userID)
	if err != nil {
		return false, mapErr(err)
	}
	return affected(res)
}

func (s *Store) RemoveTeamMember(ctx context.Context, teamID, userID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, mapErr(err)
	}
	return affected(res)
}

func (s *Store) TeamsHaveEvaluations(ctx context.Context, groupID int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM evaluations e
		JOIN teams t ON t.id = e.team_id
		WHERE t.group_id = $1`, groupID).Scan(&n)
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

// --- team_history ---

func (s *Store) OpenHistory(ctx context.Context, h models.TeamHistory) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO team_history (user_id, team_id, group_id, period_id, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, NULL, TRUE)
		RETURNING id`,
		h.UserID, h.TeamID, h.GroupID, h.PeriodID, h.StartDate.UTC(),
	).Scan(&id)
	return id, mapErr(err)
}

func (s *Store) CloseUserHistory(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE team_history SET end_date = $1, is_active = FALSE
		WHERE user_id = $2 AND is_active = TRUE`, at.UTC(), userID)
	return mapErr(err)
}

func (s *Store) CloseTeamsHistory(ctx context.Context, teamIDs []int64, at time.Time) error {
	if len(teamIDs) == 0 {
		return nil
	}
	in, args := inList(2, teamIDs)
	_, err := s.q.ExecContext(ctx, `
		UPDATE team_history SET end_date = $1, is_active = FALSE
		WHERE is_active = TRUE AND team_id IN `+in, append([]any{at.UTC()}, args...)...)
	return mapErr(err)
}

func (s *Store) ListHistory(ctx context.Context, userID int64, periodID *int64) ([]models.TeamHistory, error) {
	query := `
		SELECT h.id, h.user_id, h.team_id, h.group_id, h.period_id, h.start_date, h.end_date, h.is_active,
		       COALESCE(t.name, ''), COALESCE(g.name, '')
		FROM team_history h
		LEFT JOIN teams t ON t.id = h.team_id
		LEFT JOIN student_groups g ON g.id = h.group_id
		WHERE h.user_id = $1`
	args := []any{userID}
	if periodID != nil {
		query += ` AND h.period_id = $2`
		args = append(args, *periodID)
	}
	query += ` ORDER BY h.start_date DESC, h.id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.TeamHistory
	for rows.Next() {
		var h models.TeamHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.TeamID, &h.GroupID, &h.PeriodID, &h.StartDate, &h.EndDate,
			&h.IsActive, &h.TeamName, &h.GroupName); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, h)
	}
	return out, mapErr(rows.Err())
}
