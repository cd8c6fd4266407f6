package telemetry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want LatencyBucket
	}{
		{0, BucketUnder10ms},
		{9 * time.Millisecond, BucketUnder10ms},
		{10 * time.Millisecond, BucketUnder50ms},
		{99 * time.Millisecond, BucketUnder100ms},
		{499 * time.Millisecond, BucketUnder500ms},
		{2 * time.Second, BucketOver500ms},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.in))
		})
	}
}

func TestQueryMetrics_Record_CountsEverything(t *testing.T) {
	// Given: a fresh collector
	m := New(Config{})

	// When: recording a hit, a miss and a degraded query
	m.Record(QueryEvent{Query: "Wi fi", ResultCount: 3, Latency: 5 * time.Millisecond, Ranking: "succeeded"})
	m.Record(QueryEvent{Query: "zzz", ResultCount: 0, Latency: 60 * time.Millisecond, Ranking: "succeeded"})
	m.Record(QueryEvent{Query: "wifi", ResultCount: 1, Latency: time.Second, Ranking: "timed_out", Degraded: []string{"apps"}})

	// Then: the snapshot reflects each event
	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, []string{"zzz"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketUnder10ms])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketOver500ms])
	assert.Equal(t, int64(2), snap.RankingStates["succeeded"])
	assert.Equal(t, int64(1), snap.DegradedSources["apps"])
	assert.InDelta(t, 33.3, snap.ZeroResultPercentage(), 0.1)
	assert.NotEmpty(t, snap.Since)
}

func TestQueryMetrics_RepeatsIgnoreCaseAndSpacing(t *testing.T) {
	// Given: a collector
	m := New(Config{})

	// When: the same query is recorded with different case and spacing
	m.Record(QueryEvent{Query: "Dark theme", ResultCount: 1})
	m.Record(QueryEvent{Query: "  dark   THEME ", ResultCount: 1})
	m.Record(QueryEvent{Query: "font size", ResultCount: 1})

	// Then: one repeat is counted
	assert.Equal(t, int64(1), m.Snapshot().RepeatCount)
}

func TestQueryMetrics_TopTerms_SortedByCount(t *testing.T) {
	// Given: a collector reporting two terms
	m := New(Config{TopTermsReported: 2})

	// When: terms are recorded with different frequencies
	m.Record(QueryEvent{Query: "battery saver"})
	m.Record(QueryEvent{Query: "battery usage"})
	m.Record(QueryEvent{Query: "battery"})
	m.Record(QueryEvent{Query: "usage"})
	m.Record(QueryEvent{Query: "a"})

	// Then: the most frequent terms come first and single letters are skipped
	snap := m.Snapshot()
	require.Len(t, snap.TopTerms, 2)
	assert.Equal(t, TermCount{Term: "battery", Count: 3}, snap.TopTerms[0])
	assert.Equal(t, TermCount{Term: "usage", Count: 2}, snap.TopTerms[1])
}

func TestQueryMetrics_ZeroResults_NewestFirstAndBounded(t *testing.T) {
	// Given: a collector keeping three zero-result queries
	m := New(Config{ZeroResultsCapacity: 3})

	// When: five misses are recorded
	for i := 0; i < 5; i++ {
		m.Record(QueryEvent{Query: fmt.Sprintf("miss-%d", i)})
	}

	// Then: only the latest three are kept, newest first
	snap := m.Snapshot()
	assert.Equal(t, []string{"miss-4", "miss-3", "miss-2"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(5), snap.ZeroResultCount)
}

func TestQueryMetrics_Reset(t *testing.T) {
	// Given: a collector with data
	m := New(Config{})
	m.Record(QueryEvent{Query: "wifi"})

	// When: resetting
	m.Reset()

	// Then: the snapshot is empty
	snap := m.Snapshot()
	assert.Zero(t, snap.TotalQueries)
	assert.Empty(t, snap.TopTerms)
	assert.Empty(t, snap.ZeroResultQueries)
}

func TestQueryMetrics_ConcurrentRecord(t *testing.T) {
	// Given: a collector
	m := New(Config{})

	// When: many goroutines record at once
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Record(QueryEvent{Query: "bluetooth", ResultCount: 1})
			}
		}()
	}
	wg.Wait()

	// Then: no event is lost
	assert.Equal(t, int64(1000), m.Snapshot().TotalQueries)
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"dark", "theme"}, ExtractTerms("dark theme"))
	assert.Nil(t, ExtractTerms("a b"))
	assert.Nil(t, ExtractTerms(""))
}
