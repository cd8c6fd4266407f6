package mcp

import (
	"time"

	"github.com/Aman-CERP/settingsearch/internal/aggregate"
	"github.com/Aman-CERP/settingsearch/internal/async"
	"github.com/Aman-CERP/settingsearch/internal/index"
	"github.com/Aman-CERP/settingsearch/internal/search"
	"github.com/Aman-CERP/settingsearch/internal/telemetry"
)

// Tool names.
const (
	ToolSearchSettings = "search_settings"
	ToolRecentQueries  = "recent_queries"
	ToolRecordQuery    = "record_query"
	ToolClearHistory   = "clear_history"
	ToolReindex        = "reindex"
	ToolIndexStatus    = "index_status"
)

// SearchSettingsInput defines the input schema for the search_settings tool.
type SearchSettingsInput struct {
	Query string `json:"query" jsonschema:"the settings search query, as the user typed it"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchSettingsOutput defines the output schema for the search_settings tool.
type SearchSettingsOutput struct {
	Query   string                         `json:"query"`
	Ranking string                         `json:"ranking" jsonschema:"relevance overlay outcome: disabled, succeeded, timed_out or failed"`
	Results []SettingResultOutput          `json:"results" jsonschema:"matching settings, best first"`
	Sources map[string]aggregate.TaskState `json:"sources,omitempty" jsonschema:"how each result source ended"`
}

// SettingResultOutput is one search hit.
type SettingResultOutput struct {
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Breadcrumbs []string `json:"breadcrumbs,omitempty" jsonschema:"screen path leading to the setting"`
	Rank        int      `json:"rank" jsonschema:"match tier, lower is better"`
	StableID    int64    `json:"stable_id"`
	Action      string   `json:"action,omitempty" jsonschema:"intent action that opens the setting"`
	Package     string   `json:"target_package,omitempty"`
	Class       string   `json:"target_class,omitempty"`
	Key         string   `json:"key,omitempty" jsonschema:"preference key to highlight"`
	Kind        string   `json:"kind,omitempty" jsonschema:"payload kind: inline_switch, inline_list or intent"`
	Score       float64  `json:"score,omitempty" jsonschema:"relevance score when ranking succeeded"`
}

// RecentQueriesInput defines the input schema for the recent_queries tool.
type RecentQueriesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of saved queries, default 5"`
}

// RecentQueriesOutput defines the output schema for the recent_queries tool.
type RecentQueriesOutput struct {
	Queries []string `json:"queries" jsonschema:"saved queries, most recent first"`
}

// RecordQueryInput defines the input schema for the record_query tool.
type RecordQueryInput struct {
	Query string `json:"query" jsonschema:"the submitted query to save"`
}

// ClearHistoryInput defines the input schema for the clear_history tool (no parameters).
type ClearHistoryInput struct{}

// AckOutput is returned by tools that only report success.
type AckOutput struct {
	OK bool `json:"ok"`
}

// ReindexInput defines the input schema for the reindex tool.
type ReindexInput struct {
	Full bool `json:"full,omitempty" jsonschema:"rebuild even if locale and build are unchanged"`
}

// ReindexOutput defines the output schema for the reindex tool.
type ReindexOutput struct {
	PassID   string   `json:"pass_id"`
	Locale   string   `json:"locale"`
	Full     bool     `json:"full"`
	Sources  int      `json:"sources"`
	Skipped  []string `json:"skipped,omitempty"`
	Rows     int      `json:"rows"`
	Enabled  int      `json:"enabled"`
	Disabled int      `json:"disabled"`
	Dropped  int      `json:"dropped"`
	Millis   int64    `json:"duration_ms"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput is the indexing state of the service.
type IndexStatusOutput struct {
	Status         string         `json:"status" jsonschema:"idle, indexing, ready or error"`
	Ready          bool           `json:"ready" jsonschema:"true when queries are answered without waiting"`
	Stage          string         `json:"stage,omitempty"`
	Locale         string         `json:"locale,omitempty"`
	Passes         int            `json:"passes"`
	Coalesced      int            `json:"coalesced"`
	PendingQueries int            `json:"pending_queries"`
	ElapsedSeconds int            `json:"elapsed_seconds"`
	LastPass       *ReindexOutput `json:"last_pass,omitempty"`
	LastPassAt     string         `json:"last_pass_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	// Queries holds statistics of the queries answered by this server.
	Queries *telemetry.Snapshot `json:"queries,omitempty"`
}

// ToIndexStatusOutput converts a service snapshot to its wire form.
func ToIndexStatusOutput(snap async.ProgressSnapshot) IndexStatusOutput {
	out := IndexStatusOutput{
		Status:         snap.Status,
		Ready:          snap.Ready,
		Stage:          snap.Stage,
		Locale:         snap.Locale,
		Passes:         snap.Passes,
		Coalesced:      snap.Coalesced,
		PendingQueries: snap.PendingQueries,
		ElapsedSeconds: snap.ElapsedSeconds,
		ErrorMessage:   snap.ErrorMessage,
	}
	if snap.LastPass != nil {
		last := ToReindexOutput(snap.LastPass)
		out.LastPass = &last
	}
	if !snap.LastPassAt.IsZero() {
		out.LastPassAt = snap.LastPassAt.Format(time.RFC3339)
	}
	return out
}

// ToReindexOutput converts a pass result to its wire form.
func ToReindexOutput(res *index.PassResult) ReindexOutput {
	return ReindexOutput{
		PassID:   res.PassID,
		Locale:   res.Locale,
		Full:     res.Full,
		Sources:  res.Sources,
		Skipped:  res.Skipped,
		Rows:     res.Rows,
		Enabled:  res.Enabled,
		Disabled: res.Disabled,
		Dropped:  res.Dropped,
		Millis:   res.Duration.Milliseconds(),
	}
}

// ToSettingResultOutput converts a search result to its wire form.
func ToSettingResultOutput(r search.Result) SettingResultOutput {
	out := SettingResultOutput{
		Title:       r.Title,
		Summary:     r.Summary,
		Breadcrumbs: r.Breadcrumbs,
		Rank:        r.Rank,
		StableID:    r.StableID,
		Action:      r.Action.Action,
		Package:     r.Action.TargetPackage,
		Class:       r.Action.TargetClass,
		Key:         r.Action.Key,
		Score:       r.Score,
	}
	if r.Payload != nil {
		out.Kind = r.Payload.Type().String()
	}
	return out
}
