package stats

import (
	"fmt"
	"sync"
)

// Outcome is the single terminal result of one work item
type Outcome string

const (
	OutcomeSaved         Outcome = "saved"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeFilteredSmall Outcome = "filtered_small"
	OutcomeFailed        Outcome = "failed"
)

// RunStats counts work item outcomes
type RunStats struct {
	Attempted     int `json:"attempted"`
	Saved         int `json:"saved"`
	Duplicate     int `json:"duplicate"`
	FilteredSmall int `json:"filtered_small"`
	Failed        int `json:"failed"`
}

// Consistent reports whether every attempted item has exactly one outcome
func (s RunStats) Consistent() bool {
	return s.Attempted == s.Saved+s.Duplicate+s.FilteredSmall+s.Failed
}

func (s RunStats) String() string {
	return fmt.Sprintf("attempted=%d saved=%d duplicate=%d filtered_small=%d failed=%d",
		s.Attempted, s.Saved, s.Duplicate, s.FilteredSmall, s.Failed)
}

// Aggregator accumulates RunStats from many workers
type Aggregator struct {
	mu    sync.Mutex
	stats RunStats
}

// NewAggregator creates an aggregator with all counters at zero
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record counts one attempted item and its outcome in a single critical section
func (a *Aggregator) Record(o Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch o {
	case OutcomeSaved:
		a.stats.Saved++
	case OutcomeDuplicate:
		a.stats.Duplicate++
	case OutcomeFilteredSmall:
		a.stats.FilteredSmall++
	case OutcomeFailed:
		a.stats.Failed++
	default:
		return fmt.Errorf("unknown outcome %q", o)
	}
	a.stats.Attempted++
	return nil
}

// Add merges another set of totals, e.g. a finished thread into the run total
func (a *Aggregator) Add(s RunStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.Attempted += s.Attempted
	a.stats.Saved += s.Saved
	a.stats.Duplicate += s.Duplicate
	a.stats.FilteredSmall += s.FilteredSmall
	a.stats.Failed += s.Failed
}

// Snapshot returns a consistent copy of the counters
func (a *Aggregator) Snapshot() RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
