package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"themectl/model"
)

func TestShouldRunInterval(t *testing.T) {
	sc := model.Schedule{
		ID:      "s1",
		Enabled: true,
		Type:    model.ScheduleInterval,
		Theme:   "nord",
		Every:   "1h",
	}
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, shouldRun(sc, time.Time{}, now), "never run before")
	assert.False(t, shouldRun(sc, now.Add(-30*time.Minute), now))
	assert.True(t, shouldRun(sc, now.Add(-2*time.Hour), now))

	sc.Every = "bogus"
	assert.False(t, shouldRun(sc, time.Time{}, now))

	sc.Every = ""
	assert.False(t, shouldRun(sc, time.Time{}, now))
}

func TestShouldRunDaily(t *testing.T) {
	sc := model.Schedule{
		ID:        "night",
		Enabled:   true,
		Type:      model.ScheduleDaily,
		Theme:     "nord",
		Scheme:    "dark",
		TimeOfDay: "19:00",
	}

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, shouldRun(sc, time.Time{}, day.Add(18*time.Hour)), "before time of day")
	assert.True(t, shouldRun(sc, time.Time{}, day.Add(19*time.Hour)))
	assert.True(t, shouldRun(sc, time.Time{}, day.Add(23*time.Hour)), "late but never run")

	// Already ran today.
	assert.False(t, shouldRun(sc, day.Add(19*time.Hour), day.Add(20*time.Hour)))
	// Ran yesterday.
	assert.True(t, shouldRun(sc, day.Add(-5*time.Hour), day.Add(19*time.Hour)))

	sc.TimeOfDay = "25:99"
	assert.False(t, shouldRun(sc, time.Time{}, day.Add(19*time.Hour)))

	sc.TimeOfDay = ""
	assert.False(t, shouldRun(sc, time.Time{}, day.Add(19*time.Hour)))
}

func TestShouldRunUnknownType(t *testing.T) {
	sc := model.Schedule{ID: "x", Enabled: true, Type: "cron", Theme: "nord"}
	assert.False(t, shouldRun(sc, time.Time{}, time.Now()))
}

type applyCall struct {
	theme  string
	scheme string
}

func TestCheckFiresDueSchedules(t *testing.T) {
	var mu sync.Mutex
	var calls []applyCall
	done := make(chan struct{}, 4)

	apply := func(ctx context.Context, themeName, schemeName string) error {
		mu.Lock()
		calls = append(calls, applyCall{themeName, schemeName})
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	schedules := []model.Schedule{
		{ID: "due", Enabled: true, Type: model.ScheduleInterval, Theme: "nord", Scheme: "dark", Every: "1h"},
		{ID: "disabled", Enabled: false, Type: model.ScheduleInterval, Theme: "other", Every: "1h"},
		{ID: "no-theme", Enabled: true, Type: model.ScheduleInterval, Every: "1h"},
	}

	s := New(apply, schedules, nil, zap.NewNop())

	var updates int
	s.SetOnUpdate(func() {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	s.check(context.Background(), now)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled apply never ran")
	}

	// Wait for runOnce to finish updating lastRun.
	require.Eventually(t, func() bool {
		return !s.LastRun()["due"].IsZero()
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Len(t, calls, 1)
	assert.Equal(t, applyCall{"nord", "dark"}, calls[0])
	assert.Equal(t, 1, updates)
	mu.Unlock()

	// A second check immediately after must not refire the interval.
	s.check(context.Background(), now.Add(time.Minute))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Len(t, calls, 1)
	mu.Unlock()
}

func TestSetSchedulesResetsLastRun(t *testing.T) {
	s := New(func(ctx context.Context, themeName, schemeName string) error { return nil },
		nil, map[string]time.Time{"a": time.Now()}, zap.NewNop())

	require.NotEmpty(t, s.LastRun())

	s.SetSchedules([]model.Schedule{{ID: "b", Theme: "x"}})
	assert.Empty(t, s.LastRun())
	assert.Len(t, s.Schedules(), 1)
}
