package services

import (
	"context"
	"time"

	"github.com/you/bookauth/domain"
	"go.uber.org/zap"
)

// MaintenanceWorker periodically unlocks accounts whose lockout has elapsed
// and switches off sessions past their expiry.
type MaintenanceWorker struct {
	accounts domain.AccountService
	interval time.Duration
	logger   *zap.Logger
}

// NewMaintenanceWorker creates a worker that sweeps every interval
func NewMaintenanceWorker(accounts domain.AccountService, interval time.Duration, logger *zap.Logger) *MaintenanceWorker {
	return &MaintenanceWorker{
		accounts: accounts,
		interval: interval,
		logger:   logger.Named("maintenance"),
	}
}

// Run sweeps until ctx is cancelled. It always returns nil so it can sit in an errgroup.
func (w *MaintenanceWorker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.logger.Info("maintenance worker disabled")
		return nil
	}
	w.logger.Info("starting maintenance worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			w.logger.Info("stopping maintenance worker")
			return nil
		}
	}
}

// RunOnce performs a single sweep
func (w *MaintenanceWorker) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		maintenanceRunDurationHist.Observe(time.Since(start).Seconds())
	}()

	unlocked, err := w.accounts.UnlockElapsed(ctx)
	if err != nil {
		w.logger.Error("unlock sweep failed", zap.Error(err))
	}
	expired, err := w.accounts.ExpireSessions(ctx)
	if err != nil {
		w.logger.Error("session expiry sweep failed", zap.Error(err))
	}
	if unlocked > 0 || expired > 0 {
		w.logger.Info("maintenance sweep finished",
			zap.Int("accounts_unlocked", unlocked),
			zap.Int64("sessions_expired", expired))
	}
}
