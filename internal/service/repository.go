package service

import (
	"context"
	"time"

	"github.com/Spok95/group-grader/internal/models"
)

// Repository — абстрактное хранилище движка. Реализация: internal/db.
//
// Ошибки: отсутствие записи — apperr.ErrNotFound, нарушение уникальности
// (evaluator, team, period) — apperr.ErrDuplicateEvaluation, таймауты и обрывы —
// apperr.ErrStoreUnavailable, сериализационные конфликты — apperr.ErrConcurrencyConflict.
type Repository interface {
	// InTx выполняет fn как одну атомарную единицу. Вложенный вызов переиспользует
	// текущую транзакцию.
	InTx(ctx context.Context, fn func(Repository) error) error
	// Lock берёт блокировку до конца текущей транзакции. Вне транзакции — ошибка.
	Lock(ctx context.Context, key string) error

	UserRepository
	GroupRepository
	TeamRepository
	CriterionRepository
	PeriodRepository
	EvaluationRepository
}

type UserRepository interface {
	CreateUser(ctx context.Context, u models.User) (int64, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	// ListActiveStudents — активные студенты группы, по имени.
	ListActiveStudents(ctx context.Context, groupID int64) ([]models.User, error)
	SetUserTeam(ctx context.Context, userID int64, teamID *int64) error
	SetUserGroup(ctx context.Context, userID, groupID int64) error
	SetUserActive(ctx context.Context, userID int64, active bool) error
	// ClearCurrentTeam обнуляет currentTeam у всех, кто указывает на команды из списка.
	ClearCurrentTeam(ctx context.Context, teamIDs []int64) error
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, g models.Group) (int64, error)
	GetGroup(ctx context.Context, id int64) (models.Group, error)
	ListGroups(ctx context.Context, activeOnly bool) ([]models.Group, error)
	UpdateGroup(ctx context.Context, g models.Group) error
	DeleteGroup(ctx context.Context, id int64) error
	// CountGroupUsers — все пользователи группы, включая неактивных.
	CountGroupUsers(ctx context.Context, groupID int64) (int, error)
}

type TeamRepository interface {
	CreateTeam(ctx context.Context, t models.Team) (int64, error)
	GetTeam(ctx context.Context, id int64) (models.Team, error)
	// ListTeams — команды групп с участниками, по id.
	ListTeams(ctx context.Context, groupIDs []int64, activeOnly bool) ([]models.Team, error)
	RenameTeam(ctx context.Context, id int64, name string) error
	// DeactivateGroupTeams выключает активные команды группы и возвращает их id.
	DeactivateGroupTeams(ctx context.Context, groupID int64) ([]int64, error)
	DeleteGroupTeams(ctx context.Context, groupID int64) error
	AddTeamMember(ctx context.Context, teamID, userID int64) (bool, error)
	RemoveTeamMember(ctx context.Context, teamID, userID int64) (bool, error)
	// TeamsHaveEvaluations — есть ли оценки у команд группы.
	TeamsHaveEvaluations(ctx context.Context, groupID int64) (bool, error)

	OpenHistory(ctx context.Context, h models.TeamHistory) (int64, error)
	// CloseUserHistory закрывает открытую запись пользователя (если есть).
	CloseUserHistory(ctx context.Context, userID int64, at time.Time) error
	// CloseTeamsHistory закрывает все открытые записи указанных команд.
	CloseTeamsHistory(ctx context.Context, teamIDs []int64, at time.Time) error
	ListHistory(ctx context.Context, userID int64, periodID *int64) ([]models.TeamHistory, error)
}

type CriterionRepository interface {
	CreateCriterion(ctx context.Context, c models.Criterion) (int64, error)
	GetCriterion(ctx context.Context, id int64) (models.Criterion, error)
	UpdateCriterion(ctx context.Context, c models.Criterion) error
	// ListCriteria — по убыванию веса, затем по id.
	ListCriteria(ctx context.Context, activeOnly bool) ([]models.Criterion, error)
	// ActiveWeightSum — сумма весов активных критериев, кроме excludeID.
	ActiveWeightSum(ctx context.Context, excludeID int64) (int, error)
}

type PeriodRepository interface {
	CreatePeriod(ctx context.Context, p models.Period) (int64, error)
	GetPeriod(ctx context.Context, id int64) (models.Period, error)
	// ListPeriods — новые первыми.
	ListPeriods(ctx context.Context) ([]models.Period, error)
	// ActivePeriod — период с is_active, nil если такого нет.
	ActivePeriod(ctx context.Context) (*models.Period, error)
	SetPeriodState(ctx context.Context, id int64, active bool, status models.PeriodStatus) error
	// CompleteActivePeriods переводит все активные периоды, кроме exceptID, в completed.
	CompleteActivePeriods(ctx context.Context, exceptID int64) ([]int64, error)
	DeletePeriod(ctx context.Context, id int64) error
}

type EvaluationRepository interface {
	EvaluationExists(ctx context.Context, evaluatorID, teamID, periodID int64) (bool, error)
	CreateEvaluation(ctx context.Context, e models.Evaluation) (int64, error)
	GetEvaluation(ctx context.Context, id int64) (models.Evaluation, error)
	// ListEvaluationRows — оценки периода с именами, по id.
	ListEvaluationRows(ctx context.Context, periodID int64) ([]models.EvaluationRow, error)
	EvaluatedTeamIDs(ctx context.Context, evaluatorID, periodID int64) ([]int64, error)
}
