package store

import "time"

// Rank tiers. Lower is better.
const (
	// TopRank is reserved for promoted rows.
	TopRank = 0
	// MinRank and MaxRank bound the static rank supplied by a source.
	MinRank = 0
	MaxRank = 9
	// BottomRank is the ceiling used when merging dynamic results.
	BottomRank = 10
)

// Column names of the prefs_index table accepted by QueryRows.
const (
	ColTitle                = "data_title"
	ColTitleNormalized      = "data_title_normalized"
	ColSummaryOn            = "data_summary_on"
	ColSummaryOnNormalized  = "data_summary_on_normalized"
	ColSummaryOff           = "data_summary_off"
	ColSummaryOffNormalized = "data_summary_off_normalized"
	ColEntries              = "data_entries"
	ColKeywords             = "data_keywords"

	// Folded copies: Normalize plus lower-casing for every script. SQLite
	// LIKE only folds ASCII, so case-insensitive matching uses these.
	ColTitleFolded      = "data_title_folded"
	ColSummaryOnFolded  = "data_summary_on_folded"
	ColSummaryOffFolded = "data_summary_off_folded"
	ColEntriesFolded    = "data_entries_folded"
	ColKeywordsFolded   = "data_keywords_folded"
)

var matchableColumns = map[string]struct{}{
	ColTitle:                {},
	ColTitleNormalized:      {},
	ColSummaryOn:            {},
	ColSummaryOnNormalized:  {},
	ColSummaryOff:           {},
	ColSummaryOffNormalized: {},
	ColEntries:              {},
	ColKeywords:             {},
	ColTitleFolded:          {},
	ColSummaryOnFolded:      {},
	ColSummaryOffFolded:     {},
	ColEntriesFolded:        {},
	ColKeywordsFolded:       {},
}

// OpenAction describes how to open a row. The engine stores and returns
// it without interpreting it.
type OpenAction struct {
	Action        string `json:"action,omitempty"`
	TargetPackage string `json:"target_package,omitempty"`
	TargetClass   string `json:"target_class,omitempty"`
	Key           string `json:"key,omitempty"`
}

// IsZero reports whether no field is set.
func (a OpenAction) IsZero() bool {
	return a == OpenAction{}
}

// IndexedRow is one searchable unit of the index.
type IndexedRow struct {
	DocID  int64
	Locale string
	Rank   int

	Title                string
	TitleNormalized      string
	SummaryOn            string
	SummaryOnNormalized  string
	SummaryOff           string
	SummaryOffNormalized string
	Entries              string // EntriesSeparator delimited
	Keywords             string // space delimited

	ClassName      string
	ChildClassName string
	ScreenTitle    string
	IconRef        string
	Action         OpenAction

	Enabled bool
	Key     string
	UserID  int

	// SourceID identifies the source (package) the row came from; the
	// non-indexable overlay is keyed by it.
	SourceID string

	// Payload is nil when the row carries none or it failed to decode.
	Payload Payload
}

// SiteMapEdge links a parent screen to a child screen for breadcrumbs.
type SiteMapEdge struct {
	ParentClass string
	ParentTitle string
	ChildClass  string
	ChildTitle  string
}

// IndexMeta is what was recorded by the last successful pass for a locale.
type IndexMeta struct {
	Locale            string
	BuildFingerprint  string
	SourceFingerprint string
	IndexedAt         time.Time
}

// SavedQuery is one entry of the recent queries ledger.
type SavedQuery struct {
	Query     string
	Timestamp time.Time
}

// Stats summarizes the store contents.
type Stats struct {
	Rows         int            `json:"rows"`
	EnabledRows  int            `json:"enabled_rows"`
	RowsByLocale map[string]int `json:"rows_by_locale"`
	SiteMapEdges int            `json:"site_map_edges"`
	SavedQueries int            `json:"saved_queries"`
}

// ClampRank forces r into [MinRank, MaxRank].
func ClampRank(r int) int {
	if r < MinRank {
		return MinRank
	}
	if r > MaxRank {
		return MaxRank
	}
	return r
}
