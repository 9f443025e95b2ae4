package ctxutil

import (
	"context"
	"time"

	"github.com/Spok95/group-grader/internal/models"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyUserID key = iota
	keyRole
	keyOpName
	keyRequestID
)

// Identity — кто вызывает движок. Приходит от провайдера идентичности, движок ей доверяет.
type Identity struct {
	UserID int64
	Role   models.Role
}

func (i Identity) IsAdmin() bool { return i.Role == models.Admin }

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, keyUserID, id.UserID)
	return context.WithValue(ctx, keyRole, id.Role)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	uid, ok := ctx.Value(keyUserID).(int64)
	if !ok {
		return Identity{}, false
	}
	role, _ := ctx.Value(keyRole).(models.Role)
	return Identity{UserID: uid, Role: role}, true
}

// WithOp /Op — имя операции (для логов/трейса)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyOpName).(string)
	return s, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(keyRequestID).(string)
	return s
}

// DefaultDBTimeout переопределяется из конфига (DB_TIMEOUT) при старте.
var DefaultDBTimeout = 5 * time.Second

// WithTimeout — удобная обёртка над context.WithTimeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithDBTimeout — стандартный таймаут для БД.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		// если у родителя осталось меньше DefaultDBTimeout — берем остаток
		if remain := time.Until(dl); remain < DefaultDBTimeout {
			return context.WithTimeout(parent, remain)
		}
	}
	return WithTimeout(parent, DefaultDBTimeout)
}
