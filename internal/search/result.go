package search

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Aman-CERP/settingsearch/internal/store"
)

// ErrInvalidResult is returned when a result is built without a title,
// a stable id or an open action.
var ErrInvalidResult = errors.New("invalid search result")

// Result is the query time projection of a row or of a dynamic hit.
// Results are ordered by Rank and are equal when their StableID is.
type Result struct {
	Title       string           `json:"title"`
	Summary     string           `json:"summary,omitempty"`
	Breadcrumbs []string         `json:"breadcrumbs,omitempty"`
	Rank        int              `json:"rank"`
	StableID    int64            `json:"stable_id"`
	Action      store.OpenAction `json:"open_action"`
	Icon        string           `json:"icon,omitempty"`
	Payload     store.Payload    `json:"payload,omitempty"`

	// Score is the relevance score when the overlay succeeded.
	Score float64 `json:"score,omitempty"`
}

// Equal reports whether r and o identify the same hit.
func (r Result) Equal(o Result) bool {
	return r.StableID == o.StableID
}

// Less orders results by rank ascending.
func (r Result) Less(o Result) bool {
	return r.Rank < o.Rank
}

// PayloadType returns the payload tag of the result.
func (r Result) PayloadType() store.PayloadType {
	if r.Payload == nil {
		return store.PayloadNone
	}
	return r.Payload.Type()
}

// SortByRank orders results by rank, keeping the input order of ties.
func SortByRank(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Less(results[j])
	})
}

// Builder assembles a Result and validates it.
type Builder struct {
	r     Result
	hasID bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Title(t string) *Builder { b.r.Title = t; return b }
func (b *Builder) Summary(s string) *Builder { b.r.Summary = s; return b }
func (b *Builder) Breadcrumbs(c []string) *Builder { b.r.Breadcrumbs = c; return b }
func (b *Builder) Rank(rank int) *Builder { b.r.Rank = rank; return b }
func (b *Builder) Icon(icon string) *Builder { b.r.Icon = icon; return b }
func (b *Builder) Payload(p store.Payload) *Builder { b.r.Payload = p; return b }

func (b *Builder) Action(a store.OpenAction) *Builder {
	b.r.Action = a
	return b
}

func (b *Builder) StableID(id int64) *Builder {
	b.r.StableID = id
	b.hasID = true
	return b
}

// Build returns the result or ErrInvalidResult.
func (b *Builder) Build() (Result, error) {
	switch {
	case b.r.Title == "":
		return Result{}, fmt.Errorf("%w: title is required", ErrInvalidResult)
	case !b.hasID:
		return Result{}, fmt.Errorf("%w: stable id is required", ErrInvalidResult)
	case b.r.Action.IsZero():
		return Result{}, fmt.Errorf("%w: open action is required", ErrInvalidResult)
	}
	return b.r, nil
}
