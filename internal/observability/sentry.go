package observability

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Spok95/group-grader/internal/apperr"
)

func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr шлёт в Sentry только системные ошибки: отказы валидации и
// инвариантов — нормальное поведение.
func CaptureErr(err error) {
	if err == nil || apperr.Expected(err) {
		return
	}
	sentry.CaptureException(err)
}
