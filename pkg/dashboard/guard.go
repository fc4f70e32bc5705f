package dashboard

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/speedrun-hq/paydesk/pkg/metrics"
)

// ActionRecord tracks an action between submission and settlement
type ActionRecord struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	StartedAt time.Time `json:"started_at"`
}

// ActionGuard rejects a second identical action while the first is executing
type ActionGuard struct {
	mu       sync.Mutex
	inflight map[string]*ActionRecord
	now      func() time.Time
}

// NewActionGuard creates an empty guard
func NewActionGuard() *ActionGuard {
	return &ActionGuard{
		inflight: make(map[string]*ActionRecord),
		now:      time.Now,
	}
}

// Begin reserves key. It fails with ErrActionInFlight when key is already reserved.
func (g *ActionGuard) Begin(key string) (*ActionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.inflight[key]; ok {
		return nil, fmt.Errorf("%s started %s: %w", key, existing.StartedAt.Format(time.RFC3339), ErrActionInFlight)
	}

	record := &ActionRecord{
		ID:        uuid.New(),
		Key:       key,
		StartedAt: g.now(),
	}
	g.inflight[key] = record
	metrics.ActionsInFlight.Set(float64(len(g.inflight)))
	return record, nil
}

// Finish releases key and reports whether it was reserved
func (g *ActionGuard) Finish(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inflight[key]; !ok {
		return false
	}
	delete(g.inflight, key)
	metrics.ActionsInFlight.Set(float64(len(g.inflight)))
	return true
}

// InFlight returns the reserved actions, oldest first
func (g *ActionGuard) InFlight() []ActionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	records := make([]ActionRecord, 0, len(g.inflight))
	for _, r := range g.inflight {
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].StartedAt.Before(records[j].StartedAt)
		}
		return records[i].Key < records[j].Key
	})
	return records
}
