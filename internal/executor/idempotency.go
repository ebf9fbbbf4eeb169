package executor

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tradepipe/internal/domain"
)

// idempotencyTracker guarantees at-most-one broker submission per order
// identity. In-flight duplicates collapse onto the running call via
// singleflight; completed outcomes are recorded so later duplicates replay
// the first result without touching the broker.
type idempotencyTracker struct {
	group   singleflight.Group
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
}

func newIdempotencyTracker() *idempotencyTracker {
	return &idempotencyTracker{records: make(map[string]domain.IdempotencyRecord)}
}

// Execute runs fn at most once for the key. The first caller executes;
// concurrent duplicates share its outcome; later duplicates get the
// recorded one.
func (t *idempotencyTracker) Execute(key string, fn func() (domain.ExecutionResult, error)) (domain.ExecutionResult, error, bool) {
	t.mu.RLock()
	rec, done := t.records[key]
	t.mu.RUnlock()
	if done {
		return rec.Result.Snapshot(), rec.Err, true
	}

	v, err, shared := t.group.Do(key, func() (interface{}, error) {
		res, execErr := fn()
		t.mu.Lock()
		t.records[key] = domain.IdempotencyRecord{
			OrderID:    key,
			Result:     res,
			Err:        execErr,
			RecordedAt: time.Now().UTC(),
		}
		t.mu.Unlock()
		// The execution error travels inside the record; singleflight's
		// error slot stays nil so sharers always receive the result value.
		return res, nil
	})
	if err != nil {
		return domain.ExecutionResult{}, err, shared
	}

	t.mu.RLock()
	rec = t.records[key]
	t.mu.RUnlock()
	_ = v
	return rec.Result.Snapshot(), rec.Err, shared
}

// Lookup returns the recorded outcome for a key, if any.
func (t *idempotencyTracker) Lookup(key string) (domain.IdempotencyRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[key]
	return rec, ok
}
