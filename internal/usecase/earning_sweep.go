package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunEarningSweep repairs earnings missed by the webhook path every interval
// until ctx is cancelled.
func RunEarningSweep(ctx context.Context, payments PaymentService, interval time.Duration, batch int, log *zap.Logger) {
	if interval <= 0 {
		return
	}
	if batch <= 0 {
		batch = 100
	}
	log = log.With(zap.String("worker", "earning_sweep"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Earning sweep started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("Earning sweep stopped")
			return
		case <-ticker.C:
			if _, err := payments.ReconcileMissingEarnings(ctx, batch); err != nil {
				log.Error("Earning sweep failed", zap.Error(err))
			}
		}
	}
}
