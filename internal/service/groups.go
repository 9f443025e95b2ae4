package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/models"
)

const defaultMaxStudents = 30

// GroupService — группы и список студентов.
type GroupService struct {
	core
}

type GroupInput struct {
	Name        string
	Description string
	MaxStudents int
	CreatedBy   *int64
}

// GroupUpdate — nil-поля не меняются.
type GroupUpdate struct {
	Name        *string
	Description *string
	MaxStudents *int
	IsActive    *bool
}

type StudentInput struct {
	Name    string
	Email   string
	GroupID int64
}

func validateGroup(g models.Group) error {
	if err := checkLen("название", g.Name, 2, 100); err != nil {
		return err
	}
	if err := checkLen("описание", g.Description, 0, 500); err != nil {
		return err
	}
	return checkRange("лимит студентов", g.MaxStudents, 1, 100)
}

func (s *GroupService) Create(ctx context.Context, in GroupInput) (models.Group, error) {
	g := models.Group{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		MaxStudents: in.MaxStudents,
		IsActive:    true,
		CreatedBy:   in.CreatedBy,
	}
	if g.MaxStudents == 0 {
		g.MaxStudents = defaultMaxStudents
	}
	if err := validateGroup(g); err != nil {
		return models.Group{}, err
	}
	err := s.exec(ctx, "groups.create", func(ctx context.Context) error {
		g.CreatedAt = s.now().UTC()
		id, err := s.repo.CreateGroup(ctx, g)
		if err != nil {
			return err
		}
		g.ID = id
		return nil
	}, zap.String("name", g.Name))
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Update меняет группу. Лимит нельзя опустить ниже текущего числа студентов.
func (s *GroupService) Update(ctx context.Context, id int64, in GroupUpdate) (models.Group, error) {
	var g models.Group
	err := s.exec(ctx, "groups.update", func(ctx context.Context) error {
		return s.tx(ctx, groupKey(id), func(r Repository) error {
			var err error
			if g, err = r.GetGroup(ctx, id); err != nil {
				return err
			}
			if in.Name != nil {
				g.Name = strings.TrimSpace(*in.Name)
			}
			if in.Description != nil {
				g.Description = strings.TrimSpace(*in.Description)
			}
			if in.MaxStudents != nil {
				g.MaxStudents = *in.MaxStudents
			}
			if in.IsActive != nil {
				g.IsActive = *in.IsActive
			}
			if err := validateGroup(g); err != nil {
				return err
			}
			if g.MaxStudents < g.CurrentStudents {
				return fmt.Errorf("%w: в группе %d студентов", apperr.ErrGroupCapacity, g.CurrentStudents)
			}
			return r.UpdateGroup(ctx, g)
		})
	}, zap.Int64("group_id", id))
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Delete удаляет пустую группу вместе с её командами.
func (s *GroupService) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, "groups.delete", func(ctx context.Context) error {
		return s.tx(ctx, groupKey(id), func(r Repository) error {
			if _, err := r.GetGroup(ctx, id); err != nil {
				return err
			}
			users, err := r.CountGroupUsers(ctx, id)
			if err != nil {
				return err
			}
			if users > 0 {
				return fmt.Errorf("%w: пользователей %d", apperr.ErrGroupInUse, users)
			}
			evaluated, err := r.TeamsHaveEvaluations(ctx, id)
			if err != nil {
				return err
			}
			if evaluated {
				return fmt.Errorf("%w: у команд есть оценки", apperr.ErrGroupInUse)
			}
			if err := r.DeleteGroupTeams(ctx, id); err != nil {
				return err
			}
			return r.DeleteGroup(ctx, id)
		})
	}, zap.Int64("group_id", id))
}

func (s *GroupService) Get(ctx context.Context, id int64) (models.Group, error) {
	var g models.Group
	err := s.read(ctx, "groups.get", func(ctx context.Context) (err error) {
		g, err = s.repo.GetGroup(ctx, id)
		return err
	})
	return g, err
}

func (s *GroupService) List(ctx context.Context, activeOnly bool) ([]models.Group, error) {
	var list []models.Group
	err := s.read(ctx, "groups.list", func(ctx context.Context) (err error) {
		list, err = s.repo.ListGroups(ctx, activeOnly)
		return err
	})
	return list, err
}

// Students — активные студенты группы по имени.
func (s *GroupService) Students(ctx context.Context, groupID int64) ([]models.User, error) {
	var list []models.User
	err := s.read(ctx, "groups.students", func(ctx context.Context) error {
		if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
			return err
		}
		var err error
		list, err = s.repo.ListActiveStudents(ctx, groupID)
		return err
	})
	return list, err
}

func (s *GroupService) RegisterStudent(ctx context.Context, in StudentInput) (models.User, error) {
	u := models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		GroupID:  in.GroupID,
		Role:     models.Student,
		IsActive: true,
	}
	if err := checkLen("имя", u.Name, 2, 50); err != nil {
		return models.User{}, err
	}
	if err := checkEmail(u.Email); err != nil {
		return models.User{}, err
	}

	err := s.exec(ctx, "groups.register_student", func(ctx context.Context) error {
		return s.tx(ctx, groupKey(in.GroupID), func(r Repository) error {
			if err := admit(ctx, r, in.GroupID); err != nil {
				return err
			}
			u.CreatedAt = s.now().UTC()
			id, err := r.CreateUser(ctx, u)
			if err != nil {
				return err
			}
			u.ID = id
			return nil
		})
	}, zap.Int64("group_id", in.GroupID))
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// admit проверяет, что в группу можно добавить ещё одного студента.
func admit(ctx context.Context, r Repository, groupID int64) error {
	g, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.IsActive {
		return apperr.ErrGroupInactive
	}
	if g.Full() {
		return fmt.Errorf("%w: %d/%d", apperr.ErrGroupFull, g.CurrentStudents, g.MaxStudents)
	}
	return nil
}

// MoveStudent переводит студента в другую группу; из текущей команды он выходит.
func (s *GroupService) MoveStudent(ctx context.Context, userID, groupID int64) (models.User, error) {
	var u models.User
	err := s.exec(ctx, "groups.move_student", func(ctx context.Context) error {
		from, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		u = from
		if from.GroupID == groupID {
			return nil
		}
		keys := []string{groupKey(from.GroupID), groupKey(groupID)}
		return s.txKeys(ctx, keys, func(r Repository) error {
			var err error
			if u, err = lockedUser(ctx, r, userID, from.GroupID); err != nil {
				return err
			}
			if u.IsActive {
				if err := admit(ctx, r, groupID); err != nil {
					return err
				}
			} else if _, err := r.GetGroup(ctx, groupID); err != nil {
				return err
			}
			if err := leaveTeam(ctx, r, u, s.now().UTC()); err != nil {
				return err
			}
			if err := r.SetUserGroup(ctx, userID, groupID); err != nil {
				return err
			}
			u.GroupID, u.CurrentTeam = groupID, nil
			return nil
		})
	}, zap.Int64("user_id", userID), zap.Int64("group_id", groupID))
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// lockedUser перечитывает пользователя под блокировкой группы lockedGroup.
// Если его успели перевести в другую группу, блокировка не та: конфликт, exec повторит.
func lockedUser(ctx context.Context, r Repository, userID, lockedGroup int64) (models.User, error) {
	u, err := r.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if u.GroupID != lockedGroup {
		return models.User{}, fmt.Errorf("%w: user %d moved from group %d", apperr.ErrConcurrencyConflict, userID, lockedGroup)
	}
	return u, nil
}

// SetStudentActive включает или выключает студента. Выключенный выходит из команды.
func (s *GroupService) SetStudentActive(ctx context.Context, userID int64, active bool) (models.User, error) {
	var u models.User
	err := s.exec(ctx, "groups.set_student_active", func(ctx context.Context) error {
		cur, err := s.repo.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		return s.tx(ctx, groupKey(cur.GroupID), func(r Repository) error {
			var err error
			if u, err = lockedUser(ctx, r, userID, cur.GroupID); err != nil {
				return err
			}
			if u.IsActive == active {
				return nil
			}
			if active {
				if err := admit(ctx, r, u.GroupID); err != nil {
					return err
				}
			} else if err := leaveTeam(ctx, r, u, s.now().UTC()); err != nil {
				return err
			}
			if err := r.SetUserActive(ctx, userID, active); err != nil {
				return err
			}
			u.IsActive = active
			if !active {
				u.CurrentTeam = nil
			}
			return nil
		})
	}, zap.Int64("user_id", userID), zap.Bool("active", active))
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}
