package control

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TickRequester asks for one simulation step over every session. It must not block.
type TickRequester interface {
	RequestTick() bool
}

// TickDriver periodically requests simulation ticks. It is the only source
// of simulation progress.
type TickDriver struct {
	interval time.Duration
	target   TickRequester
	logger   *zap.Logger
	skipped  uint64
}

// NewTickDriver returns a driver firing every interval.
//
// Precondition: interval must be > 0.
func NewTickDriver(interval time.Duration, target TickRequester, logger *zap.Logger) *TickDriver {
	if interval <= 0 {
		panic("control.NewTickDriver: interval must be > 0")
	}
	return &TickDriver{interval: interval, target: target, logger: logger}
}

// Run fires tick requests until ctx is cancelled. A request refused by a
// full queue is skipped; simulation time is measured, so nothing is lost.
func (d *TickDriver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !d.target.RequestTick() {
				d.skipped++
				if d.skipped == 1 || d.skipped%1000 == 0 {
					d.logger.Warn("coordinator queue full, tick skipped", zap.Uint64("skipped_total", d.skipped))
				}
			}
		}
	}
}
