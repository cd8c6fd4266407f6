// Package search serves ranked queries against the settings index.
// Four tiered LIKE passes feed a result set that is refined per row and
// optionally re-ordered by a relevance scorer that runs alongside them.
package search

import (
	"context"
	"time"
)

// Base rank of each matching pass, best first.
const (
	TierTitleFirstWord = 1
	TierTitleWord      = 3
	TierSummary        = 7
	TierKeywords       = 9
)

// LongTitleLength is the rune count above which a title is demoted one
// step within its tier.
const LongTitleLength = 20

// PriorityKeys are promoted to TopRank when they matched in the best tier.
var PriorityKeys = map[string]struct{}{
	"main_toggle_wifi":      {},
	"main_toggle_bluetooth": {},
	"toggle_airplane":       {},
	"tether_settings":       {},
	"battery_saver":         {},
	"toggle_nfc":            {},
	"restrict_background":   {},
	"data_usage_enable":     {},
	"button_roaming_key":    {},
}

// RankingState reports what happened to the relevance overlay of a query.
type RankingState int

const (
	// RankingDisabled means no scorer is configured.
	RankingDisabled RankingState = iota
	// RankingPending means the scorer was started but not yet awaited.
	RankingPending
	// RankingSucceeded means scores re-ordered the results.
	RankingSucceeded
	// RankingFailed means the scorer returned an error.
	RankingFailed
	// RankingTimedOut means the scorer missed its deadline.
	RankingTimedOut
)

// String returns the state name.
func (s RankingState) String() string {
	switch s {
	case RankingDisabled:
		return "disabled"
	case RankingPending:
		return "pending"
	case RankingSucceeded:
		return "succeeded"
	case RankingFailed:
		return "failed"
	case RankingTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RankingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Scorer produces relevance scores keyed by doc id. Rows missing from the
// returned map sink to the bottom.
type Scorer interface {
	Score(ctx context.Context, locale, query string) (map[int64]float64, error)
}

// Response is the outcome of one static query.
type Response struct {
	Query   string       `json:"query"`
	Locale  string       `json:"locale"`
	Results []Result     `json:"results"`
	Ranking RankingState `json:"ranking"`
	// Cached is set when the response came from the result cache.
	Cached bool `json:"cached,omitempty"`
}

// EngineConfig configures the query engine.
type EngineConfig struct {
	// Locale is the partition queried.
	Locale string

	// ScorerTimeout bounds the wait for the relevance overlay (default: 300ms).
	ScorerTimeout time.Duration

	// CacheSize is the number of responses kept (default: 128, 0 disables).
	CacheSize int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Locale:        "en_US",
		ScorerTimeout: 300 * time.Millisecond,
		CacheSize:     128,
	}
}
