// Package apperr описывает таксономию ошибок движка оценивания.
//
// Каждая бизнес-ошибка — именованный sentinel (*Error) с видом (Kind) и
// машинным кодом. Подробности добавляются через fmt.Errorf("%w: ...").
package apperr

import (
	"errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation — некорректный ввод, повторять бессмысленно.
	KindValidation
	// KindInvariant — операция нарушила бы инвариант, запись не выполнена.
	KindInvariant
	KindNotFound
	// KindConflict — проигранная гонка или откат транзакции, можно повторить один раз.
	KindConflict
	// KindUnavailable — таймаут или обрыв соединения с хранилищем, повтор с backoff.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvariant:
		return "invariant"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Validation
var (
	ErrInvalidInput     = newErr(KindValidation, "invalid_input", "некорректные данные")
	ErrInvalidDateRange = newErr(KindValidation, "invalid_date_range", "дата окончания должна быть после даты начала")
	ErrInvalidScore     = newErr(KindValidation, "invalid_score", "некорректные оценки")
	ErrInvalidTeamSize  = newErr(KindValidation, "invalid_team_size", "размер команды должен быть больше 0")
)

// Invariant
var (
	ErrWeightBudgetExceeded = newErr(KindInvariant, "weight_budget_exceeded", "сумма весов всех активных критериев не может превышать 100")
	ErrPeriodInUse          = newErr(KindInvariant, "period_in_use", "нельзя удалить активный период")
	ErrInvalidTransition    = newErr(KindInvariant, "invalid_transition", "недопустимый переход статуса периода")
	ErrPeriodNotActive      = newErr(KindInvariant, "period_not_active", "нет активного периода оценивания")
	ErrNoActiveTeam         = newErr(KindInvariant, "no_active_team", "у вас нет активной команды")
	ErrSelfEvaluation       = newErr(KindInvariant, "self_evaluation_forbidden", "нельзя оценивать свою команду")
	ErrGroupBoundary        = newErr(KindInvariant, "group_boundary_violation", "команда недоступна для оценивания по правилу групп")
	ErrTeamInactive         = newErr(KindInvariant, "team_inactive", "команда неактивна")
	ErrDuplicateEvaluation  = newErr(KindInvariant, "duplicate_evaluation", "вы уже оценили эту команду")
	ErrEmptyGroup           = newErr(KindInvariant, "empty_group", "в группе нет студентов")
	ErrDuplicateName        = newErr(KindInvariant, "duplicate_name", "группа с таким названием уже существует")
	ErrDuplicateEmail       = newErr(KindInvariant, "duplicate_email", "пользователь с таким email уже существует")
	ErrGroupCapacity        = newErr(KindInvariant, "group_capacity", "нельзя установить лимит меньше текущего количества студентов")
	ErrGroupFull            = newErr(KindInvariant, "group_full", "группа заполнена")
	ErrGroupInactive        = newErr(KindInvariant, "group_inactive", "группа неактивна")
	ErrGroupInUse           = newErr(KindInvariant, "group_in_use", "нельзя удалить группу, в которой есть студенты или оценки")
	ErrForeignMember        = newErr(KindInvariant, "foreign_member", "студент не состоит в группе команды")
)

var ErrNotFound = newErr(KindNotFound, "not_found", "не найдено")

var (
	ErrConcurrencyConflict = newErr(KindConflict, "concurrency_conflict", "конфликт параллельной записи, повторите операцию")
	ErrStoreUnavailable    = newErr(KindUnavailable, "store_unavailable", "хранилище недоступно")
)

// As достаёт *Error из цепочки.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Code возвращает машинный код ошибки или "internal".
func Code(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "internal"
}

func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindConflict || k == KindUnavailable
}

// Expected — ошибки, которые являются нормальным отказом операции и не
// должны уходить в Sentry.
func Expected(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindInvariant, KindNotFound:
		return true
	}
	return false
}
