// Package async runs index passes in the background and defers queries
// issued while one is in flight.
package async

import (
	"sync"
	"time"

	"github.com/Aman-CERP/settingsearch/internal/index"
)

// IndexingStatus represents the overall indexing state.
type IndexingStatus string

const (
	// StatusIdle means no pass has run yet.
	StatusIdle IndexingStatus = "idle"
	// StatusIndexing indicates a pass is in flight.
	StatusIndexing IndexingStatus = "indexing"
	// StatusReady indicates the last pass completed.
	StatusReady IndexingStatus = "ready"
	// StatusError indicates the last pass failed.
	StatusError IndexingStatus = "error"
)

// IndexingStage is the current step of a pass.
type IndexingStage string

const (
	// StageCrawling covers collecting, writing and validating.
	StageCrawling IndexingStage = "crawling"
	// StageRefreshing covers the post-pass hooks (cache, scorer).
	StageRefreshing IndexingStage = "refreshing"
)

// ProgressSnapshot is an immutable snapshot of indexing progress.
type ProgressSnapshot struct {
	Status         string            `json:"status"`
	Ready          bool              `json:"ready"`
	Stage          string            `json:"stage,omitempty"`
	Locale         string            `json:"locale,omitempty"`
	Passes         int               `json:"passes"`
	Coalesced      int               `json:"coalesced"`
	PendingQueries int               `json:"pending_queries"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	LastPass       *index.PassResult `json:"last_pass,omitempty"`
	LastPassAt     time.Time         `json:"last_pass_at,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
}

// Progress provides thread-safe tracking of indexing progress.
type Progress struct {
	mu sync.RWMutex

	status       IndexingStatus
	stage        IndexingStage
	locale       string
	passes       int
	coalesced    int
	startTime    time.Time
	lastPass     *index.PassResult
	lastPassAt   time.Time
	errorMessage string
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{status: StatusIdle}
}

// Start marks a pass for locale as begun.
func (p *Progress) Start(locale string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusIndexing
	p.stage = StageCrawling
	p.locale = locale
	p.startTime = time.Now()
}

// SetStage updates the current stage.
func (p *Progress) SetStage(stage IndexingStage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
}

// Coalesce counts a trigger folded into the running pass.
func (p *Progress) Coalesce() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.coalesced++
}

// SetError marks the pass as failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusError
	p.stage = ""
	p.passes++
	p.errorMessage = message
}

// SetReady records a completed pass.
func (p *Progress) SetReady(res *index.PassResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = StatusReady
	p.stage = ""
	p.passes++
	p.lastPass = res
	p.lastPassAt = time.Now()
	p.errorMessage = ""
}

// IsIndexing returns true while a pass is in flight.
func (p *Progress) IsIndexing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status == StatusIndexing
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := ProgressSnapshot{
		Status:       string(p.status),
		Stage:        string(p.stage),
		Locale:       p.locale,
		Passes:       p.passes,
		Coalesced:    p.coalesced,
		LastPassAt:   p.lastPassAt,
		ErrorMessage: p.errorMessage,
	}
	if p.status == StatusIndexing {
		snap.ElapsedSeconds = int(time.Since(p.startTime).Seconds())
	}
	if p.lastPass != nil {
		last := *p.lastPass
		snap.LastPass = &last
	}
	return snap
}
