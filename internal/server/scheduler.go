package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const sweepLockKey = "sweep:lock:runs"

// Pruner deletes archived runs older than a cutoff.
type Pruner interface {
	PruneRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler sweeps archived runs past the retention window. Ticks hourly and
// fires when the cron schedule is due; a redis lock keeps replicas from
// sweeping at the same time.
type Scheduler struct {
	Store    Pruner
	Rdb      *redis.Client
	Days     int
	Schedule string
	Stop     chan struct{}
	Log      *log.Logger

	mu        sync.Mutex
	lastSweep *time.Time
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick(time.Now())
			}
		}
	}()
}

func (s *Scheduler) tick(now time.Time) {
	if s.Days <= 0 {
		return
	}
	s.mu.Lock()
	last := s.lastSweep
	s.mu.Unlock()
	if !isDue(s.Schedule, last, now) {
		return
	}

	ctx := context.Background()
	// distributed lock to avoid duplicate sweeps
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, sweepLockKey, "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, sweepLockKey)
	}

	cutoff := now.AddDate(0, 0, -s.Days)
	pruned, err := s.Store.PruneRunsBefore(ctx, cutoff)
	if err != nil {
		s.logf("retention sweep failed: %v", err)
		return
	}
	s.logf("retention sweep pruned %d runs older than %s", pruned, cutoff.Format(time.RFC3339))

	s.mu.Lock()
	s.lastSweep = &now
	s.mu.Unlock()
}

func (s *Scheduler) logf(format string, args ...interface{}) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}

// isDue determines if a job with cronSpec should run now based on its last
// run time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions; invalid specs fall back to @daily.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			// never run, due now
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
