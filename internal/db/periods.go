package db

import (
	"context"

	"github.com/Spok95/group-grader/internal/models"
)

const periodCols = `id, name, description, start_date, end_date, is_active, status, created_by, created_at`

func scanPeriod(sc scanner, p *models.Period) error {
	var status string
	if err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.StartDate, &p.EndDate, &p.IsActive, &status,
		&p.CreatedBy, &p.CreatedAt); err != nil {
		return err
	}
	p.Status = models.PeriodStatus(status)
	return nil
}

func (s *Store) CreatePeriod(ctx context.Context, p models.Period) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO periods (name, description, start_date, end_date, is_active, status, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		p.Name, p.Description, p.StartDate.UTC(), p.EndDate.UTC(), p.IsActive, string(p.Status), p.CreatedBy, p.CreatedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, mapErr(err)
	}
	for _, gid := range p.Groups {
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO period_groups (period_id, group_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, id, gid); err != nil {
			return 0, mapErr(err)
		}
	}
	return id, nil
}

func (s *Store) GetPeriod(ctx context.Context, id int64) (models.Period, error) {
	var p models.Period
	if err := scanPeriod(s.q.QueryRowContext(ctx, `SELECT `+periodCols+` FROM periods WHERE id = $1`, id), &p); err != nil {
		return models.Period{}, mapErr(err)
	}
	groups, err := s.loadPeriodGroups(ctx, []int64{id})
	if err != nil {
		return models.Period{}, err
	}
	p.Groups = groups[id]
	return p, nil
}

func (s *Store) ListPeriods(ctx context.Context) ([]models.Period, error) {
	return s.listPeriods(ctx, `SELECT `+periodCols+` FROM periods ORDER BY start_date DESC, id DESC`)
}

func (s *Store) ActivePeriod(ctx context.Context) (*models.Period, error) {
	list, err := s.listPeriods(ctx, `SELECT `+periodCols+` FROM periods WHERE is_active = TRUE ORDER BY id LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

func (s *Store) listPeriods(ctx context.Context, query string, args ...any) ([]models.Period, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	var (
		out []models.Period
		ids []int64
	)
	for rows.Next() {
		var p models.Period
		if err := scanPeriod(rows, &p); err != nil {
			_ = rows.Close()
			return nil, mapErr(err)
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}

	groups, err := s.loadPeriodGroups(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Groups = groups[out[i].ID]
	}
	return out, nil
}

func (s *Store) loadPeriodGroups(ctx context.Context, periodIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(periodIDs))
	if len(periodIDs) == 0 {
		return out, nil
	}
	in, args := inList(1, periodIDs)
	rows, err := s.q.QueryContext(ctx, `
		SELECT period_id, group_id FROM period_groups
		WHERE period_id IN `+in+`
		ORDER BY period_id, group_id`, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var pid, gid int64
		if err := rows.Scan(&pid, &gid); err != nil {
			return nil, mapErr(err)
		}
		out[pid] = append(out[pid], gid)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) SetPeriodState(ctx context.Context, id int64, active bool, status models.PeriodStatus) error {
	res, err := s.q.ExecContext(ctx, `UPDATE periods SET is_active = $1, status = $2 WHERE id = $3`,
		active, string(status), id)
	if err != nil {
		// уникальный индекс по is_active: второй активный период = проигранная гонка, mapErr даст conflict
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) CompleteActivePeriods(ctx context.Context, exceptID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id FROM periods WHERE is_active = TRUE AND id <> $1 ORDER BY id`, exceptID)
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

	in, args := inList(2, ids)
	_, err = s.q.ExecContext(ctx, `UPDATE periods SET is_active = FALSE, status = $1 WHERE id IN `+in,
		append([]any{string(models.PeriodCompleted)}, args...)...)
	if err != nil {
		return nil, mapErr(err)
	}
	return ids, nil
}

func (s *Store) DeletePeriod(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}
