package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextMidnight(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	s := NewDailyScheduler("test", ist)

	// 23:30 IST rolls to next day's 00:00 IST.
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, ist)
	next := s.nextMidnight(now)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, ist), next)

	// The boundary is the venue's midnight even when the input is UTC.
	utcNow := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC) // 01:30 IST on the 3rd
	next = s.nextMidnight(utcNow)
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, ist), next)
}

func TestNilLocationDefaultsToUTC(t *testing.T) {
	s := NewDailyScheduler("test", nil)
	assert.Equal(t, time.UTC, s.Location)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	s := NewDailyScheduler("test", time.UTC)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx, func() {})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestStartFiresAtBoundary(t *testing.T) {
	s := NewDailyScheduler("test", time.UTC)
	// Pin "now" just before midnight so the first wait is tiny.
	s.nowFn = func() time.Time {
		return time.Date(2026, 3, 2, 23, 59, 59, int(time.Second-10*time.Millisecond), time.UTC)
	}

	fired := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
		cancel()
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not fire at the day boundary")
	}
}
