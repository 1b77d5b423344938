package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/slot-booking/internal/model"
)

const historyDays = 7

// DailyCleanup archives every ledger row dated more than seven days ago,
// whatever its status.
func (e *Engine) DailyCleanup(ctx context.Context) (int, error) {
	var n int
	err := e.withLock(ctx, "daily-cleanup", func() error {
		regs, err := e.store.ListRegistrations(ctx)
		if err != nil {
			return fmt.Errorf("list registrations: %w", err)
		}
		cutoff := e.dateOffset(-historyDays)
		for _, r := range regs {
			if r.Date >= cutoff {
				continue
			}
			if err := e.archive(ctx, r, model.ReasonDailyCleanup); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if n > 0 {
		e.log.InfoContext(ctx, "history cleaned", "archived", n)
	}
	return n, err
}

// CleanupJob adapts DailyCleanup to the scheduler.
func (e *Engine) CleanupJob(ctx context.Context) error {
	_, err := e.DailyCleanup(ctx)
	return err
}
