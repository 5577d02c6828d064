package session

import (
	"context"
	"log/slog"
	"time"
)

// StartSweeper drops expired sessions every interval until ctx is done.
func StartSweeper(ctx context.Context, store Store, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.Sweep(ctx)
				if err != nil {
					logger.Warn("session sweep failed", "err", err)
					continue
				}
				if n > 0 {
					logger.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
}
