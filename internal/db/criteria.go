package db

import (
	"context"

	"github.com/Spok95/group-grader/internal/models"
)

const criterionCols = `id, name, description, weight, max_score, is_active, created_by, created_at`

func scanCriterion(sc scanner, c *models.Criterion) error {
	return sc.Scan(&c.ID, &c.Name, &c.Description, &c.Weight, &c.MaxScore, &c.IsActive, &c.CreatedBy, &c.CreatedAt)
}

func (s *Store) CreateCriterion(ctx context.Context, c models.Criterion) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO criteria (name, description, weight, max_score, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		c.Name, c.Description, c.Weight, c.MaxScore, c.IsActive, c.CreatedBy, c.CreatedAt.UTC(),
	).Scan(&id)
	return id, mapErr(err)
}

func (s *Store) GetCriterion(ctx context.Context, id int64) (models.Criterion, error) {
	var c models.Criterion
	if err := scanCriterion(s.q.QueryRowContext(ctx, `SELECT `+criterionCols+` FROM criteria WHERE id = $1`, id), &c); err != nil {
		return models.Criterion{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) UpdateCriterion(ctx context.Context, c models.Criterion) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE criteria SET name = $1, description = $2, weight = $3, max_score = $4, is_active = $5
		WHERE id = $6`,
		c.Name, c.Description, c.Weight, c.MaxScore, c.IsActive, c.ID)
	if err != nil {
		return mapErr(err)
	}
	return mustAffect(res)
}

func (s *Store) ListCriteria(ctx context.Context, activeOnly bool) ([]models.Criterion, error) {
	query := `SELECT ` + criterionCols + ` FROM criteria`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY weight DESC, id`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, mapErr(err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Criterion
	for rows.Next() {
		var c models.Criterion
		if err := scanCriterion(rows, &c); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (s *Store) ActiveWeightSum(ctx context.Context, excludeID int64) (int, error) {
	var sum int
	err := s.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(weight), 0) FROM criteria
		WHERE is_active = TRUE AND id <> $1`, excludeID).Scan(&sum)
	return sum, mapErr(err)
}
