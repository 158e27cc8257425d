package registration

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/regbot/core/logger"
	"github.com/m3rciful/regbot/internal/metrics"
)

// sweeper is implemented by stores that expire idle sessions themselves.
type sweeper interface {
	Sweep(ctx context.Context) int
}

// RunJanitor sweeps expired sessions and samples the active-session gauge every
// interval until ctx is cancelled.
func RunJanitor(ctx context.Context, store Store, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			janitorTick(ctx, store)
		case <-ctx.Done():
			return nil
		}
	}
}

func janitorTick(ctx context.Context, store Store) {
	if sw, ok := store.(sweeper); ok {
		if n := sw.Sweep(ctx); n > 0 {
			logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelInfo, "registration.expired",
				slog.String("status", "ok"),
				slog.Int("count", n),
			)
		}
	}
	n, err := store.Count(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCRegistration, slog.LevelWarn, "registration.count",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	metrics.SetSessionsActive(n)
}
