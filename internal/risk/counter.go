package risk

import (
	"hash/fnv"
	"sync"
	"time"
)

const counterShards = 16

// DailyCounter tracks per-account trade counts for the current trading day.
// The day boundary is midnight in the configured venue timezone; entries
// roll over lazily on first touch after the boundary. Sharded by account to
// keep contention low under thousands of concurrent placements.
type DailyCounter struct {
	loc    *time.Location
	nowFn  func() time.Time
	shards [counterShards]counterShard
}

type counterShard struct {
	mu sync.Mutex
	m  map[string]*accountDay
}

type accountDay struct {
	day   string
	count int64
}

func NewDailyCounter(loc *time.Location) *DailyCounter {
	if loc == nil {
		loc = time.UTC
	}
	c := &DailyCounter{loc: loc, nowFn: time.Now}
	for i := range c.shards {
		c.shards[i].m = make(map[string]*accountDay)
	}
	return c
}

func (c *DailyCounter) shard(accountID string) *counterShard {
	h := fnv.New32a()
	h.Write([]byte(accountID))
	return &c.shards[h.Sum32()%counterShards]
}

func (c *DailyCounter) today() string {
	return c.nowFn().In(c.loc).Format("2006-01-02")
}

// Increment reserves one trade slot and returns the account's count for the
// current day, rolling the counter over at the day boundary.
func (c *DailyCounter) Increment(accountID string) int64 {
	day := c.today()
	s := c.shard(accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.m[accountID]
	if entry == nil || entry.day != day {
		entry = &accountDay{day: day}
		s.m[accountID] = entry
	}
	entry.count++
	return entry.count
}

// Release gives back a slot reserved by Increment, used when the reserving
// check itself rejected the trade.
func (c *DailyCounter) Release(accountID string) {
	day := c.today()
	s := c.shard(accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.m[accountID]
	if entry != nil && entry.day == day && entry.count > 0 {
		entry.count--
	}
}

// Count returns the account's usage for the current day without reserving.
func (c *DailyCounter) Count(accountID string) int64 {
	day := c.today()
	s := c.shard(accountID)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.m[accountID]
	if entry == nil || entry.day != day {
		return 0
	}
	return entry.count
}

// Prune drops entries from previous days and returns how many were removed.
// Counts stay correct without it (rollover is lazy); this only reclaims
// memory for inactive accounts.
func (c *DailyCounter) Prune() int {
	day := c.today()
	pruned := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for id, entry := range s.m {
			if entry.day != day {
				delete(s.m, id)
				pruned++
			}
		}
		s.mu.Unlock()
	}
	return pruned
}

// Location exposes the configured reset timezone.
func (c *DailyCounter) Location() *time.Location { return c.loc }
