package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/tasktimer/internal/logger"
)

// finalTickTimeout bounds the checkpoint written when the ticker stops.
const finalTickTimeout = 5 * time.Second

// Ticker drives TaskService.Tick on a fixed interval.
type Ticker struct {
	svc      *TaskService
	interval time.Duration
}

// NewTicker creates a Ticker firing every interval.
func NewTicker(svc *TaskService, interval time.Duration) *Ticker {
	return &Ticker{svc: svc, interval: interval}
}

// Run ticks until ctx is cancelled, then writes one last checkpoint so the
// time accrued since the previous tick survives the shutdown.
func (t *Ticker) Run(ctx context.Context) error {
	ctx = logger.WithOrigin(ctx, logger.OriginTicker)
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	slog.Info("timer ticker started", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalTickTimeout)
			_, err := t.svc.Tick(final)
			cancel()
			if err != nil {
				slog.Error("final tick failed", "error", err)
			}
			slog.Info("timer ticker stopped")
			return nil
		case <-tk.C:
			if _, err := t.svc.Tick(ctx); err != nil {
				slog.Error("tick failed", "error", err)
			}
		}
	}
}
