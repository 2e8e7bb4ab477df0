package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	a := NewAggregator()
	require.NoError(t, a.Record(OutcomeSaved))
	require.NoError(t, a.Record(OutcomeSaved))
	require.NoError(t, a.Record(OutcomeDuplicate))
	require.NoError(t, a.Record(OutcomeFilteredSmall))
	require.NoError(t, a.Record(OutcomeFailed))
	assert.Error(t, a.Record(Outcome("skipped")))

	s := a.Snapshot()
	assert.Equal(t, RunStats{Attempted: 5, Saved: 2, Duplicate: 1, FilteredSmall: 1, Failed: 1}, s)
	assert.True(t, s.Consistent())
}

func TestRecordConcurrentKeepsInvariant(t *testing.T) {
	a := NewAggregator()
	outcomes := []Outcome{OutcomeSaved, OutcomeDuplicate, OutcomeFilteredSmall, OutcomeFailed}

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				_ = a.Record(outcomes[(w+i)%len(outcomes)])
				assert.True(t, a.Snapshot().Consistent())
			}
		}(w)
	}
	wg.Wait()

	s := a.Snapshot()
	assert.Equal(t, 2500, s.Attempted)
	assert.True(t, s.Consistent())
}

func TestAdd(t *testing.T) {
	total := NewAggregator()
	total.Add(RunStats{Attempted: 3, Saved: 2, Duplicate: 1})
	total.Add(RunStats{Attempted: 2, FilteredSmall: 1, Failed: 1})

	s := total.Snapshot()
	assert.Equal(t, 5, s.Attempted)
	assert.True(t, s.Consistent())
	assert.Equal(t, "attempted=5 saved=2 duplicate=1 filtered_small=1 failed=1", s.String())
}

func TestConsistentDetectsDrift(t *testing.T) {
	assert.False(t, RunStats{Attempted: 2, Saved: 1}.Consistent())
}
