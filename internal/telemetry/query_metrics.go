// Package telemetry keeps in-memory query statistics of a running server.
// Nothing is persisted or reported anywhere.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/settingsearch/internal/normalize"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketUnder10ms  LatencyBucket = "under_10ms"
	BucketUnder50ms  LatencyBucket = "under_50ms"
	BucketUnder100ms LatencyBucket = "under_100ms"
	BucketUnder500ms LatencyBucket = "under_500ms"
	BucketOver500ms  LatencyBucket = "over_500ms"
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketUnder10ms
	case ms < 50:
		return BucketUnder50ms
	case ms < 100:
		return BucketUnder100ms
	case ms < 500:
		return BucketUnder500ms
	default:
		return BucketOver500ms
	}
}

// QueryEvent is one answered query.
type QueryEvent struct {
	Query       string
	ResultCount int
	Latency     time.Duration
	// Ranking is the relevance overlay state of the response.
	Ranking string
	// Degraded names the sources that failed or timed out.
	Degraded []string
}

// ringBuffer is a fixed-capacity FIFO. Not safe for concurrent use.
type ringBuffer[T any] struct {
	items []T
	head  int
	size  int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{items: make([]T, capacity)}
}

func (b *ringBuffer[T]) add(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % len(b.items)
	if b.size < len(b.items) {
		b.size++
	}
}

// newestFirst returns the buffered items, most recent first.
func (b *ringBuffer[T]) newestFirst() []T {
	out := make([]T, 0, b.size)
	for i := 1; i <= b.size; i++ {
		out = append(out, b.items[(b.head-i+len(b.items))%len(b.items)])
	}
	return out
}

// TermCount is a query term and how often it was seen.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a copy of the collected metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	RepeatCount         int64                   `json:"repeat_count"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	RankingStates       map[string]int64        `json:"ranking_states"`
	DegradedSources     map[string]int64        `json:"degraded_sources"`
	Since               string                  `json:"since"`
}

// ZeroResultPercentage returns the share of queries without results.
func (s Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config sizes the collector.
type Config struct {
	TopTermsCapacity    int // default 100
	ZeroResultsCapacity int // default 20
	RecentCapacity      int // queries remembered for repeat detection, default 256
	TopTermsReported    int // default 10
}

// DefaultConfig returns the default collector sizes.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 20,
		RecentCapacity:      256,
		TopTermsReported:    10,
	}
}

// QueryMetrics collects query statistics. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	config      Config
	topTerms    *lru.Cache[string, int64]
	recent      *lru.Cache[string, struct{}]
	zeroResults *ringBuffer[string]
	latencies   map[LatencyBucket]int64
	rankings    map[string]int64
	degraded    map[string]int64
	total       int64
	zero        int64
	repeats     int64
	since       time.Time
}

// New creates a collector. Zero config fields take their defaults.
func New(cfg Config) *QueryMetrics {
	defaults := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = defaults.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = defaults.ZeroResultsCapacity
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = defaults.RecentCapacity
	}
	if cfg.TopTermsReported <= 0 {
		cfg.TopTermsReported = defaults.TopTermsReported
	}

	m := &QueryMetrics{config: cfg}
	m.reset()
	return m
}

func (m *QueryMetrics) reset() {
	// lru.New only fails for a non-positive size.
	m.topTerms, _ = lru.New[string, int64](m.config.TopTermsCapacity)
	m.recent, _ = lru.New[string, struct{}](m.config.RecentCapacity)
	m.zeroResults = newRingBuffer[string](m.config.ZeroResultsCapacity)
	m.latencies = make(map[LatencyBucket]int64)
	m.rankings = make(map[string]int64)
	m.degraded = make(map[string]int64)
	m.total, m.zero, m.repeats = 0, 0, 0
	m.since = time.Now()
}

// Record adds one query.
func (m *QueryMetrics) Record(e QueryEvent) {
	key := normalizeQuery(e.Query)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	for _, term := range ExtractTerms(key) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
	if e.ResultCount == 0 {
		m.zero++
		m.zeroResults.add(e.Query)
	}
	m.latencies[LatencyToBucket(e.Latency)]++
	if e.Ranking != "" {
		m.rankings[e.Ranking]++
	}
	for _, src := range e.Degraded {
		m.degraded[src]++
	}
	if _, seen := m.recent.Get(key); seen {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})
}

// Snapshot returns a copy of the current metrics.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			terms = append(terms, TermCount{Term: term, Count: count})
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > m.config.TopTermsReported {
		terms = terms[:m.config.TopTermsReported]
	}

	return Snapshot{
		TotalQueries:        m.total,
		ZeroResultCount:     m.zero,
		RepeatCount:         m.repeats,
		TopTerms:            terms,
		ZeroResultQueries:   m.zeroResults.newestFirst(),
		LatencyDistribution: copyCounts(m.latencies),
		RankingStates:       copyCounts(m.rankings),
		DegradedSources:     copyCounts(m.degraded),
		Since:               m.since.Format(time.RFC3339),
	}
}

// Reset drops everything collected so far.
func (m *QueryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

// ExtractTerms splits a normalized query into terms of at least two
// characters.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(query) {
		if len([]rune(w)) >= 2 {
			terms = append(terms, w)
		}
	}
	return terms
}

func normalizeQuery(q string) string {
	return strings.ToLower(normalize.Normalize(strings.TrimSpace(q)))
}

func copyCounts[K comparable](in map[K]int64) map[K]int64 {
	out := make(map[K]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
