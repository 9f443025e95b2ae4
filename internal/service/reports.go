package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Spok95/group-grader/internal/models"
)

// ReportService строит отчёты по периодам.
type ReportService struct {
	core
}

type TeamStanding struct {
	Rank        int     `json:"rank"`
	TeamID      int64   `json:"team_id"`
	TeamName    string  `json:"team_name"`
	IsActive    bool    `json:"is_active"`
	Average     float64 `json:"average"`
	Evaluations int     `json:"evaluations"`
}

type GroupReport struct {
	GroupID   int64          `json:"group_id"`
	GroupName string         `json:"group_name"`
	Teams     []TeamStanding `json:"teams"`
}

type ReportStats struct {
	TotalTeams       int     `json:"total_teams"`
	TotalEvaluations int     `json:"total_evaluations"`
	AverageScore     float64 `json:"average_score"`
}

type PeriodReport struct {
	Period      models.Period          `json:"period"`
	Groups      []GroupReport          `json:"groups"`
	Stats       ReportStats            `json:"stats"`
	Evaluations []models.EvaluationRow `json:"-"`
	GeneratedAt time.Time              `json:"generated_at"`
}

func (s *ReportService) BuildPeriodReport(ctx context.Context, periodID int64) (PeriodReport, error) {
	var rep PeriodReport
	err := s.read(ctx, "reports.period", func(ctx context.Context) error {
		p, err := s.repo.GetPeriod(ctx, periodID)
		if err != nil {
			return err
		}
		groups, err := s.repo.ListGroups(ctx, false)
		if err != nil {
			return err
		}
		teams, err := s.repo.ListTeams(ctx, p.Groups, false)
		if err != nil {
			return err
		}
		rows, err := s.repo.ListEvaluationRows(ctx, periodID)
		if err != nil {
			return err
		}
		rep = Aggregate(p, groups, teams, rows)
		rep.GeneratedAt = s.now()
		return nil
	})
	return rep, err
}

// Aggregate — чистая часть отчёта. В отчёт попадают команды групп периода,
// которые активны или получили оценки в этом периоде. Средняя команды без
// оценок — 0. Внутри группы сортировка по убыванию средней; при равенстве
// сохраняется порядок по id команды (сортировка стабильная).
// Stats считается по всем оценкам периода, включая оценки команд вне групп
// периода: такие команды в рейтинги групп не попадают.
func Aggregate(p models.Period, groups []models.Group, teams []models.Team, rows []models.EvaluationRow) PeriodReport {
	names := make(map[int64]string, len(groups))
	for _, g := range groups {
		names[g.ID] = g.Name
	}

	type acc struct {
		sum float64
		n   int
	}
	byTeam := make(map[int64]*acc)
	var total float64
	for _, r := range rows {
		a := byTeam[r.TeamID]
		if a == nil {
			a = &acc{}
			byTeam[r.TeamID] = a
		}
		a.sum += r.TotalScore
		a.n++
		total += r.TotalScore
	}

	teams = slices.Clone(teams)
	slices.SortStableFunc(teams, func(a, b models.Team) int { return cmp.Compare(a.ID, b.ID) })

	rep := PeriodReport{Period: p, Evaluations: rows}
	for _, gid := range p.Groups {
		gr := GroupReport{GroupID: gid, GroupName: names[gid]}
		means := make(map[int64]float64)
		for _, t := range teams {
			if t.GroupID != gid {
				continue
			}
			a := byTeam[t.ID]
			if !t.IsActive && a == nil {
				continue
			}
			st := TeamStanding{TeamID: t.ID, TeamName: t.Name, IsActive: t.IsActive}
			if a != nil {
				means[t.ID] = a.sum / float64(a.n)
				st.Evaluations = a.n
			}
			gr.Teams = append(gr.Teams, st)
		}
		slices.SortStableFunc(gr.Teams, func(a, b TeamStanding) int {
			return cmp.Compare(means[b.TeamID], means[a.TeamID])
		})
		for i := range gr.Teams {
			gr.Teams[i].Rank = i + 1
			gr.Teams[i].Average = round2(means[gr.Teams[i].TeamID])
		}
		rep.Stats.TotalTeams += len(gr.Teams)
		rep.Groups = append(rep.Groups, gr)
	}

	rep.Stats.TotalEvaluations = len(rows)
	if len(rows) > 0 {
		rep.Stats.AverageScore = round2(total / float64(len(rows)))
	}
	return rep
}
