// Package scheduler runs the background jobs: the delayed batch after a
// registration, the periodic mail flush and the daily reminder, digest
// and cleanup runs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of scheduled work.  Errors are logged; they never stop
// the scheduler.
type Job func(ctx context.Context) error

type loop func(ctx context.Context)

// Scheduler owns a set of job loops.  Register jobs with After, Every and
// DailyAt, then call Run.
type Scheduler struct {
	log   *slog.Logger
	loc   *time.Location
	loops []loop
}

// New returns a scheduler whose daily times are read in loc.
func New(log *slog.Logger, loc *time.Location) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{log: log.With("component", "scheduler"), loc: loc}
}

func (s *Scheduler) run(ctx context.Context, name string, job Job) {
	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.ErrorContext(ctx, "job failed", "job", name, "err", err, "took", time.Since(start))
		return
	}
	s.log.DebugContext(ctx, "job done", "job", name, "took", time.Since(start))
}

// Delayed is a job that runs once, a fixed delay after it was triggered.
type Delayed struct {
	kick chan struct{}
}

// Trigger asks for a run.  Triggers arriving while a run is already
// waiting are folded into it; a trigger during a run causes one more.
func (d *Delayed) Trigger() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// After registers job to run delay after each (coalesced) Trigger.
func (s *Scheduler) After(name string, delay time.Duration, job Job) *Delayed {
	d := &Delayed{kick: make(chan struct{}, 1)}
	s.loops = append(s.loops, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.kick:
			}
			timer := time.NewTimer(delay)
		wait:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-d.kick:
				case <-timer.C:
					break wait
				}
			}
			s.run(ctx, name, job)
		}
	})
	return d
}

// Every registers job to run at a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %s", name, interval)
	}
	s.loops = append(s.loops, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx, name, job)
			}
		}
	})
	return nil
}

// DailyAt registers job to run every day at hhmm (HH:MM) in the
// scheduler's timezone.
func (s *Scheduler) DailyAt(name, hhmm string, job Job) error {
	hour, minute, err := parseClock(hhmm)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.loops = append(s.loops, func(ctx context.Context) {
		for {
			next := nextDaily(time.Now(), hour, minute, s.loc)
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				s.run(ctx, name, job)
			}
		}
	})
	return nil
}

// Run starts every registered loop and blocks until ctx is cancelled and
// running jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range s.loops {
		g.Go(func() error {
			l(gctx)
			return nil
		})
	}
	s.log.InfoContext(ctx, "scheduler started", "jobs", len(s.loops))
	return g.Wait()
}

func parseClock(hhmm string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q: want HH:MM", hhmm)
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q: want HH:MM", hhmm)
	}
	return hour, minute, nil
}

// nextDaily returns the first hour:minute in loc strictly after now.
func nextDaily(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
