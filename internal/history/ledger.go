// Package history keeps the recently submitted queries shown as
// suggestions before and while a query is typed.
package history

import (
	"context"
	"log/slog"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

const (
	// DefaultCapacity is the number of queries kept.
	DefaultCapacity = 64
	// DefaultListLimit is the number of queries listed when no limit is given.
	DefaultListLimit = 5
)

// QueryStore is the part of the store the ledger uses.
type QueryStore interface {
	InsertSavedQuery(ctx context.Context, query string, at time.Time) error
	TrimSavedQueries(ctx context.Context, capacity int) (int, error)
	SavedQueries(ctx context.Context, prefix string, limit int) ([]store.SavedQuery, error)
	ClearSavedQueries(ctx context.Context) error
}

var _ QueryStore = (*store.Store)(nil)

// Ledger is a bounded most-recent-first list of queries.
type Ledger struct {
	store    QueryStore
	capacity int
	now      func() time.Time
}

// New creates a ledger. A capacity <= 0 uses DefaultCapacity.
func New(st QueryStore, capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{store: st, capacity: capacity, now: time.Now}
}

// Capacity returns the number of queries kept.
func (l *Ledger) Capacity() int {
	return l.capacity
}

// Record saves query as the most recent one and trims the oldest beyond
// capacity. A failed trim is logged; the insert stands.
func (l *Ledger) Record(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return serrors.New(serrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	if err := l.store.InsertSavedQuery(ctx, query, l.now()); err != nil {
		return serrors.StoreError("failed to record query", err)
	}

	removed, err := l.store.TrimSavedQueries(ctx, l.capacity)
	if err != nil {
		slog.Warn("saved_query_trim_failed",
			slog.Int("capacity", l.capacity),
			slog.String("error", err.Error()))
		return nil
	}
	if removed > 0 {
		slog.Debug("saved_queries_trimmed", slog.Int("removed", removed))
	}
	return nil
}

// List returns up to limit queries, most recent first.
func (l *Ledger) List(ctx context.Context, limit int) ([]store.SavedQuery, error) {
	return l.Suggest(ctx, "", limit)
}

// Suggest returns up to limit recent queries starting with prefix.
func (l *Ledger) Suggest(ctx context.Context, prefix string, limit int) ([]store.SavedQuery, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	queries, err := l.store.SavedQueries(ctx, prefix, limit)
	if err != nil {
		return nil, serrors.StoreError("failed to list saved queries", err)
	}
	return queries, nil
}

// Clear forgets every query.
func (l *Ledger) Clear(ctx context.Context) error {
	if err := l.store.ClearSavedQueries(ctx); err != nil {
		return serrors.StoreError("failed to clear saved queries", err)
	}
	return nil
}

// Texts returns the query strings of saved.
func Texts(saved []store.SavedQuery) []string {
	out := make([]string, len(saved))
	for i, q := range saved {
		out[i] = q.Query
	}
	return out
}
