package jobs

import (
	"context"

	"go.uber.org/zap"
)

// PeriodExpirer — часть PeriodService, нужная sweep-у.
type PeriodExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// PeriodSweep завершает активный период, у которого истекла дата окончания.
// Уведомление админов отправляет сам PeriodService.
func PeriodSweep(p PeriodExpirer, log *zap.Logger) Job {
	return func(ctx context.Context) error {
		id, err := p.ExpireOverdue(ctx)
		if err != nil {
			return err
		}
		if id != 0 {
			log.Info("period expired", zap.Int64("period_id", id))
		}
		return nil
	}
}
