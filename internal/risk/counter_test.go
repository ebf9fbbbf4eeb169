package risk

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyCounterIncrementAndRelease(t *testing.T) {
	c := NewDailyCounter(time.UTC)

	assert.Equal(t, int64(1), c.Increment("ACC-1"))
	assert.Equal(t, int64(2), c.Increment("ACC-1"))
	assert.Equal(t, int64(1), c.Increment("ACC-2"))

	c.Release("ACC-1")
	assert.Equal(t, int64(1), c.Count("ACC-1"))

	// Release never drops below zero.
	c.Release("ACC-1")
	c.Release("ACC-1")
	assert.Equal(t, int64(0), c.Count("ACC-1"))
}

func TestDailyCounterRollsOverAtVenueMidnight(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	c := NewDailyCounter(loc)
	// 23:30 IST on March 2nd.
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, loc)
	c.nowFn = func() time.Time { return now }

	c.Increment("ACC-1")
	c.Increment("ACC-1")
	assert.Equal(t, int64(2), c.Count("ACC-1"))

	// One hour later it is the next trading day; the count restarts.
	now = now.Add(time.Hour)
	assert.Equal(t, int64(0), c.Count("ACC-1"))
	assert.Equal(t, int64(1), c.Increment("ACC-1"))
}

func TestDailyCounterPrune(t *testing.T) {
	c := NewDailyCounter(time.UTC)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	c.nowFn = func() time.Time { return now }

	c.Increment("ACC-1")
	c.Increment("ACC-2")

	now = now.AddDate(0, 0, 1)
	c.Increment("ACC-3")

	assert.Equal(t, 2, c.Prune())
	assert.Equal(t, int64(1), c.Count("ACC-3"))
	assert.Equal(t, 0, c.Prune())
}

func TestDailyCounterConcurrentIncrements(t *testing.T) {
	c := NewDailyCounter(time.UTC)
	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				c.Increment("ACC-1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(workers*perWorker), c.Count("ACC-1"))
}
