package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"themectl/model"
)

// ApplyFunc switches the active stylesheet to the given theme and scheme.
type ApplyFunc func(ctx context.Context, themeName, schemeName string) error

// Scheduler fires theme switches on interval or daily schedules, e.g. a
// light theme in the morning and a dark theme in the evening.
type Scheduler struct {
	mu         sync.Mutex
	schedules  []model.Schedule
	lastRun    map[string]time.Time
	apply      ApplyFunc
	logger     *zap.Logger
	onUpdate   func()
	onComplete func(sc model.Schedule)
}

func New(apply ApplyFunc, initial []model.Schedule, lastRun map[string]time.Time, logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		schedules: append([]model.Schedule(nil), initial...),
		lastRun:   make(map[string]time.Time),
		apply:     apply,
		logger:    logger,
	}
	for k, v := range lastRun {
		s.lastRun[k] = v
	}
	return s
}

// SetOnUpdate registers a callback invoked after lastRun changes, used to
// persist scheduler state to the config file.
func (s *Scheduler) SetOnUpdate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// SetOnComplete registers a callback invoked after a scheduled switch runs.
func (s *Scheduler) SetOnComplete(fn func(sc model.Schedule)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = fn
}

func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		s.logger.Info("scheduler started", zap.Int("schedules", len(s.Schedules())))
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case now := <-ticker.C:
				s.check(ctx, now)
			}
		}
	}()
}

func (s *Scheduler) check(ctx context.Context, now time.Time) {
	s.mu.Lock()
	scheds := make([]model.Schedule, len(s.schedules))
	copy(scheds, s.schedules)
	last := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		last[k] = v
	}
	s.mu.Unlock()

	for _, sc := range scheds {
		if !sc.Enabled || sc.ID == "" || sc.Theme == "" {
			continue
		}
		if !shouldRun(sc, last[sc.ID], now) {
			continue
		}

		go s.runOnce(ctx, sc, now)
	}
}

func (s *Scheduler) runOnce(ctx context.Context, sc model.Schedule, now time.Time) {
	if err := s.apply(ctx, sc.Theme, sc.Scheme); err != nil {
		s.logger.Warn("scheduled switch failed",
			zap.String("schedule", sc.ID),
			zap.String("theme", sc.Theme),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastRun[sc.ID] = now
	onUpdate := s.onUpdate
	onComplete := s.onComplete
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate()
	}
	if onComplete != nil {
		onComplete(sc)
	}
}

func shouldRun(sc model.Schedule, lastRun time.Time, now time.Time) bool {
	switch sc.Type {
	case model.ScheduleInterval:
		if sc.Every == "" {
			return false
		}
		dur, err := time.ParseDuration(sc.Every)
		if err != nil || dur <= 0 {
			return false
		}
		if lastRun.IsZero() {
			return true
		}
		return now.Sub(lastRun) >= dur

	case model.ScheduleDaily:
		if sc.TimeOfDay == "" {
			return false
		}
		parts := strings.Split(sc.TimeOfDay, ":")
		if len(parts) < 2 {
			return false
		}
		hour, err1 := strconv.Atoi(parts[0])
		min, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || hour < 0 || hour > 23 || min < 0 || min > 59 {
			return false
		}

		loc := now.Location()
		target := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, loc)

		if now.Before(target) {
			return false
		}
		if !lastRun.IsZero() && sameDay(lastRun.In(loc), now) {
			return false
		}
		return true

	default:
		return false
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func (s *Scheduler) Schedules() []model.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}

func (s *Scheduler) LastRun() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.lastRun))
	for k, v := range s.lastRun {
		out[k] = v
	}
	return out
}

func (s *Scheduler) SetSchedules(scheds []model.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.schedules = make([]model.Schedule, len(scheds))
	copy(s.schedules, scheds)
	s.lastRun = make(map[string]time.Time)
}
