package service

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Spok95/group-grader/internal/apperr"
	"github.com/Spok95/group-grader/internal/ctxutil"
	"github.com/Spok95/group-grader/internal/metrics"
	"github.com/Spok95/group-grader/internal/observability"
)

const (
	maxAttempts      = 3
	maxConflictRetry = 1
)

type core struct {
	repo   Repository
	log    *zap.Logger
	now    func() time.Time
	tracer trace.Tracer
	locks  *KeyLocks
}

// newBackOff — экспоненциальный backoff для недоступного хранилища.
var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// exec выполняет fn с политикой повторов: ErrConcurrencyConflict повторяется
// один раз, ErrStoreUnavailable с backoff, всего не больше maxAttempts попыток.
// Остальные ошибки возвращаются сразу. Каждая попытка получает свой таймаут БД,
// поэтому fn должна начинать работу с нуля (обычно это одна транзакция).
func (c core) exec(ctx context.Context, op string, fn func(ctx context.Context) error, fields ...zap.Field) error {
	start := time.Now()
	defer metrics.ObserveOp(op, start)

	ctx, span := c.tracer.Start(ctx, op)
	defer span.End()
	ctx = ctxutil.WithOp(ctx, op)

	conflicts := 0
	attempt := func() error {
		actx, cancel := ctxutil.WithDBTimeout(ctx)
		defer cancel()

		err := fn(actx)
		switch apperr.KindOf(err) {
		case apperr.KindUnknown:
			if err == nil {
				return nil
			}
			return backoff.Permanent(err)
		case apperr.KindConflict:
			conflicts++
			if conflicts > maxConflictRetry {
				return backoff.Permanent(err)
			}
			return err
		case apperr.KindUnavailable:
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	notify := func(err error, wait time.Duration) {
		reason := apperr.KindOf(err).String()
		metrics.StoreRetries.WithLabelValues(op, reason).Inc()
		c.log.Warn("retrying store operation",
			append(fields, zap.String("op", op), zap.String("reason", reason), zap.Duration("wait", wait), zap.Error(err))...)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), maxAttempts-1), ctx)
	err := backoff.RetryNotify(attempt, b, notify)
	if err == nil {
		return nil
	}

	if apperr.Expected(err) {
		metrics.Rejections.WithLabelValues(op, apperr.Code(err)).Inc()
		c.log.Info("operation rejected", append(fields, zap.String("op", op), zap.String("code", apperr.Code(err)), zap.Error(err))...)
		span.SetStatus(codes.Error, apperr.Code(err))
		return err
	}

	metrics.Rejections.WithLabelValues(op, apperr.Code(err)).Inc()
	c.log.Error("operation failed", append(fields,
		zap.String("op", op), zap.String("request_id", ctxutil.RequestID(ctx)), zap.Error(err))...)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observability.CaptureErr(err)
	return err
}

// read — обёртка для чтений: таймаут и span, без повторов.
func (c core) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, op)
	defer span.End()

	rctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	if err := fn(rctx); err != nil {
		if !apperr.Expected(err) {
			span.RecordError(err)
			c.log.Error("read failed", zap.String("op", op), zap.Error(err))
			observability.CaptureErr(err)
		}
		return err
	}
	return nil
}

// tx — транзакция с блокировкой key: in-process и advisory в БД.
func (c core) tx(ctx context.Context, key string, fn func(r Repository) error) error {
	return c.txKeys(ctx, []string{key}, fn)
}

// txKeys — то же для нескольких ключей, всегда в отсортированном порядке.
func (c core) txKeys(ctx context.Context, keys []string, fn func(r Repository) error) error {
	keys = slices.Compact(slices.Sorted(slices.Values(keys)))
	for _, k := range keys {
		unlock := c.locks.Lock(k)
		defer unlock()
	}
	return c.repo.InTx(ctx, func(r Repository) error {
		for _, k := range keys {
			if err := r.Lock(ctx, k); err != nil {
				return err
			}
		}
		return fn(r)
	})
}

func groupKey(id int64) string { return "group:" + strconv.FormatInt(id, 10) }
