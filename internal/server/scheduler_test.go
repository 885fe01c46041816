package server

import (
	"testing"
	"time"
)

func TestSchedulerDueFirstRun(t *testing.T) {
	s := &Scheduler{CronSpec: "0 * * * *"}
	if !s.due(time.Now()) {
		t.Fatal("scheduler with no prior sweep should be due")
	}
}

func TestSchedulerDueHonorsCronSpec(t *testing.T) {
	s := &Scheduler{CronSpec: "0 * * * *"}
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)

	s.lastSweep = now.Add(-5 * time.Minute)
	if s.due(now) {
		t.Fatal("swept at 12:25, next hourly boundary is 13:00")
	}

	s.lastSweep = now.Add(-45 * time.Minute)
	if !s.due(now) {
		t.Fatal("swept at 11:45, the 12:00 boundary has passed")
	}
}

func TestSchedulerDueInvalidSpecFallsBackToDaily(t *testing.T) {
	s := &Scheduler{CronSpec: "not-a-cron"}
	now := time.Now()

	s.lastSweep = now.Add(-2 * time.Hour)
	if s.due(now) {
		t.Fatal("invalid spec should behave as daily")
	}
	s.lastSweep = now.Add(-25 * time.Hour)
	if !s.due(now) {
		t.Fatal("daily fallback should fire after 24h")
	}
}
