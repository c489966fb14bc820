package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/you/bookauth/internal/mocks"
	"go.uber.org/zap"
)

func TestMaintenanceWorker_RunOnce(t *testing.T) {
	accounts := mocks.NewMockAccountService()
	var unlockCalls, expireCalls int
	accounts.UnlockElapsedFunc = func(ctx context.Context) (int, error) {
		unlockCalls++
		return 0, errors.New("database unavailable")
	}
	accounts.ExpireSessionsFunc = func(ctx context.Context) (int64, error) {
		expireCalls++
		return 3, nil
	}

	NewMaintenanceWorker(accounts, time.Minute, zap.NewNop()).RunOnce(context.Background())

	if unlockCalls != 1 || expireCalls != 1 {
		t.Errorf("expected both sweeps to run once, got unlock=%d expire=%d", unlockCalls, expireCalls)
	}
}

func TestMaintenanceWorker_Run(t *testing.T) {
	accounts := mocks.NewMockAccountService()
	var sweeps atomic.Int32
	accounts.ExpireSessionsFunc = func(ctx context.Context) (int64, error) {
		sweeps.Add(1)
		return 0, nil
	}
	worker := NewMaintenanceWorker(accounts, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for sweeps.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestMaintenanceWorker_DisabledInterval(t *testing.T) {
	worker := NewMaintenanceWorker(mocks.NewMockAccountService(), 0, zap.NewNop())
	if err := worker.Run(context.Background()); err != nil {
		t.Errorf("disabled worker should return nil, got %v", err)
	}
}
