// Package sweeper periodically evicts expired OTP challenges and sessions.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Target is a table that can evict its expired records.
type Target interface {
	Sweep(ctx context.Context) (int, error)
}

// Named pairs a Target with the name used in logs.
type Named struct {
	Name   string
	Target Target
}

// Run sweeps every target each interval until ctx is done. Errors are logged and do not stop the loop.
func Run(ctx context.Context, interval time.Duration, log *slog.Logger, targets ...Named) {
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Once(ctx, log, targets...)
		}
	}
}

// Once runs a single sweep over targets and returns the total number of records removed.
func Once(ctx context.Context, log *slog.Logger, targets ...Named) int {
	total := 0
	for _, t := range targets {
		n, err := t.Target.Sweep(ctx)
		if err != nil {
			log.Warn("sweeper: sweep failed", "table", t.Name, "error", err)
			continue
		}
		if n > 0 {
			log.Debug("sweeper: evicted expired records", "table", t.Name, "count", n)
		}
		total += n
	}
	return total
}
