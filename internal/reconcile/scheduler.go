package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const lockKey = "aide:reconcile:lock"

// Scheduler runs the job on a cron schedule. With Rdb set, a redis lock keeps
// several processes from reconciling at the same time.
type Scheduler struct {
	Job      *Job
	Schedule string
	Rdb      *redis.Client
	LockTTL  time.Duration
	// Interval is how often the schedule is checked. Defaults to a minute.
	Interval time.Duration
	Logger   zerolog.Logger

	now  func() time.Time
	mu   sync.Mutex
	last *time.Time
}

// Start checks the schedule until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// tick runs the job when it is due and reports whether it ran.
func (s *Scheduler) tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if !isDue(s.Schedule, s.last, now) {
		return false
	}
	if s.Rdb != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 5 * time.Minute
		}
		ok, err := s.Rdb.SetNX(ctx, lockKey, "1", ttl).Result()
		if err != nil {
			s.Logger.Warn().Err(err).Msg("reconcile lock unavailable")
			return false
		}
		if !ok {
			return false
		}
		defer s.Rdb.Del(context.WithoutCancel(ctx), lockKey)
	}
	s.last = &now
	if _, err := s.Job.Run(ctx); err != nil {
		s.Logger.Warn().Err(err).Msg("scheduled reconcile failed")
	}
	return true
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// isDue reports whether a job last run at last should run at now.
// Supports "@daily", "@hourly" and standard cron expressions; an invalid
// expression behaves like "@daily".
func isDue(schedule string, last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	switch schedule {
	case "@daily":
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		return now.Sub(*last) >= time.Hour
	}
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return now.Sub(*last) >= 24*time.Hour
	}
	return !expr.Next(*last).After(now)
}
