package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/metrics"
	"github.com/Spok95/group-grader/internal/models"
)

// TeamService — состав команд и журнал участия.
type TeamService struct {
	core
	shuffle Shuffler
}

// Redistribute расформировывает активные команды группы и собирает новые
// из активных студентов в случайном порядке: куски по teamSize, последний
// может быть меньше. Всё или ничего: одна транзакция под блокировкой группы.
func (s *TeamService) Redistribute(ctx context.Context, groupID int64, teamSize int, createdBy *int64) ([]models.Team, error) {
	if teamSize <= 0 {
		return nil, fmt.Errorf("%w: %d", apperr.ErrInvalidTeamSize, teamSize)
	}

	var created []models.Team
	err := s.exec(ctx, "teams.redistribute", func(ctx context.Context) error {
		created = nil
		return s.tx(ctx, groupKey(groupID), func(r Repository) error {
			if _, err := r.GetGroup(ctx, groupID); err != nil {
				return err
			}
			students, err := r.ListActiveStudents(ctx, groupID)
			if err != nil {
				return err
			}
			if len(students) == 0 {
				return apperr.ErrEmptyGroup
			}

			now := s.now().UTC()
			old, err := r.DeactivateGroupTeams(ctx, groupID)
			if err != nil {
				return err
			}
			if err := r.CloseTeamsHistory(ctx, old, now); err != nil {
				return err
			}
			if err := r.ClearCurrentTeam(ctx, old); err != nil {
				return err
			}

			periodID, err := activePeriodID(ctx, r)
			if err != nil {
				return err
			}

			ids := make([]int64, len(students))
			for i, st := range students {
				ids[i] = st.ID
			}
			s.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

			for k, chunk := range Partition(ids, teamSize) {
				team := models.Team{
					Name:      teamName(k + 1),
					GroupID:   groupID,
					Members:   chunk,
					IsActive:  true,
					CreatedBy: createdBy,
					CreatedAt: now,
				}
				id, err := r.CreateTeam(ctx, team)
				if err != nil {
					return err
				}
				team.ID = id
				for _, uid := range chunk {
					if err := assign(ctx, r, uid, team, periodID, now); err != nil {
						return err
					}
				}
				created = append(created, team)
			}
			return nil
		})
	}, zap.Int64("group_id", groupID), zap.Int("team_size", teamSize))
	if err != nil {
		return nil, err
	}

	metrics.Redistributions.Inc()
	metrics.TeamsCreated.Add(float64(len(created)))
	s.log.Info("group redistributed", zap.Int64("group_id", groupID), zap.Int("teams", len(created)))
	return created, nil
}

// assign открывает запись журнала и ставит currentTeam.
func assign(ctx context.Context, r Repository, userID int64, team models.Team, periodID *int64, at time.Time) error {
	if _, err := r.OpenHistory(ctx, models.TeamHistory{
		UserID:    userID,
		TeamID:    team.ID,
		GroupID:   team.GroupID,
		PeriodID:  periodID,
		StartDate: at,
		IsActive:  true,
	}); err != nil {
		return err
	}
	return r.SetUserTeam(ctx, userID, &team.ID)
}

// leaveTeam выводит пользователя из текущей команды: членство, журнал, currentTeam.
func leaveTeam(ctx context.Context, r Repository, u models.User, at time.Time) error {
	if !u.HasTeam() {
		return nil
	}
	if _, err := r.RemoveTeamMember(ctx, *u.CurrentTeam, u.ID); err != nil {
		return err
	}
	if err := r.CloseUserHistory(ctx, u.ID, at); err != nil {
		return err
	}
	return r.SetUserTeam(ctx, u.ID, nil)
}

func activePeriodID(ctx context.Context, r Repository) (*int64, error) {
	p, err := r.ActivePeriod(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	return &p.ID, nil
}

// AddMember добавляет студента в активную команду его группы. Если он уже
// в другой команде, сначала выходит из неё. Уже состоящий — no-op, false.
func (s *TeamService) AddMember(ctx context.Context, teamID, userID int64) (bool, error) {
	t, err := s.Get(ctx, teamID)
	if err != nil {
		return false, err
	}

	var added bool
	err = s.exec(ctx, "teams.add_member", func(ctx context.Context) error {
		added = false
		return s.tx(ctx, groupKey(t.GroupID), func(r Repository) error {
			team, err := r.GetTeam(ctx, teamID)
			if err != nil {
				return err
			}
			if !team.IsActive {
				return apperr.ErrTeamInactive
			}
			u, err := r.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			if u.GroupID != team.GroupID {
				return apperr.ErrForeignMember
			}
			if !u.IsActive {
				return fmt.Errorf("%w: студент неактивен", apperr.ErrInvalidInput)
			}
			if team.HasMember(userID) {
				return nil
			}

			now := s.now().UTC()
			if err := leaveTeam(ctx, r, u, now); err != nil {
				return err
			}
			if _, err := r.AddTeamMember(ctx, teamID, userID); err != nil {
				return err
			}
			periodID, err := activePeriodID(ctx, r)
			if err != nil {
				return err
			}
			if err := assign(ctx, r, userID, team, periodID, now); err != nil {
				return err
			}
			added = true
			return nil
		})
	}, zap.Int64("team_id", teamID), zap.Int64("user_id", userID))
	return added, err
}

// RemoveMember убирает студента из команды. Отсутствующий — no-op, false.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID int64) (bool, error) {
	t, err := s.Get(ctx, teamID)
	if err != nil {
		return false, err
	}

	var removed bool
	err = s.exec(ctx, "teams.remove_member", func(ctx context.Context) error {
		removed = false
		return s.tx(ctx, groupKey(t.GroupID), func(r Repository) error {
			ok, err := r.RemoveTeamMember(ctx, teamID, userID)
			if err != nil || !ok {
				return err
			}
			u, err := r.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			if u.HasTeam() && *u.CurrentTeam == teamID {
				if err := r.CloseUserHistory(ctx, userID, s.now().UTC()); err != nil {
					return err
				}
				if err := r.SetUserTeam(ctx, userID, nil); err != nil {
					return err
				}
			}
			removed = true
			return nil
		})
	}, zap.Int64("team_id", teamID), zap.Int64("user_id", userID))
	return removed, err
}

func (s *TeamService) Rename(ctx context.Context, id int64, name string) (models.Team, error) {
	name = strings.TrimSpace(name)
	if err := checkLen("название", name, 2, 100); err != nil {
		return models.Team{}, err
	}
	var t models.Team
	err := s.exec(ctx, "teams.rename", func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(r Repository) error {
			if err := r.RenameTeam(ctx, id, name); err != nil {
				return err
			}
			var err error
			t, err = r.GetTeam(ctx, id)
			return err
		})
	}, zap.Int64("team_id", id))
	return t, err
}

func (s *TeamService) Get(ctx context.Context, id int64) (models.Team, error) {
	var t models.Team
	err := s.read(ctx, "teams.get", func(ctx context.Context) (err error) {
		t, err = s.repo.GetTeam(ctx, id)
		return err
	})
	return t, err
}

// ListByGroup — активные команды группы с участниками.
func (s *TeamService) ListByGroup(ctx context.Context, groupID int64) ([]models.Team, error) {
	var list []models.Team
	err := s.read(ctx, "teams.list", func(ctx context.Context) (err error) {
		list, err = s.repo.ListTeams(ctx, []int64{groupID}, true)
		return err
	})
	return list, err
}

// History — журнал команд пользователя, новые первыми. periodID nil — все периоды.
func (s *TeamService) History(ctx context.Context, userID int64, periodID *int64) ([]models.TeamHistory, error) {
	var list []models.TeamHistory
	err := s.read(ctx, "teams.history", func(ctx context.Context) (err error) {
		list, err = s.repo.ListHistory(ctx, userID, periodID)
		return err
	})
	return list, err
}
