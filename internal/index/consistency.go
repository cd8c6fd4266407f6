package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/settingsearch/internal/store"
)

// RowAccess is the part of the store the validator needs. Both
// *store.Store and *store.Batch satisfy it.
type RowAccess interface {
	RowsWhereEnabledEquals(ctx context.Context, enabled bool) ([]store.IndexedRow, error)
	SetEnabled(ctx context.Context, docID int64, enabled bool) error
}

var (
	_ RowAccess = (*store.Store)(nil)
	_ RowAccess = (*store.Batch)(nil)
)

// CheckResult contains the outcome of a validation pass.
type CheckResult struct {
	// Checked is the number of rows examined.
	Checked int
	// Disabled and Enabled count the doc ids flipped each way.
	Disabled int
	Enabled  int
	Duration time.Duration
}

// Validator re-evaluates enabled bits against the current overlay, so a
// source can hide and show keys without a full rebuild.
type Validator struct {
	appSourceID string
}

// NewValidator creates a validator. Rows with no source id are treated as
// belonging to appSourceID.
func NewValidator(appSourceID string) *Validator {
	return &Validator{appSourceID: appSourceID}
}

// Validate disables enabled rows whose key is now hidden and re-enables
// disabled rows whose source answered without hiding the key. Rows of a
// source missing from the overlay are left alone.
func (v *Validator) Validate(ctx context.Context, rows RowAccess, overlay Overlay) (*CheckResult, error) {
	start := time.Now()
	result := &CheckResult{}

	enabled, err := rows.RowsWhereEnabledEquals(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read enabled rows: %w", err)
	}
	disabled, err := rows.RowsWhereEnabledEquals(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read disabled rows: %w", err)
	}
	result.Checked = len(enabled) + len(disabled)

	toDisable := make(map[int64]bool)
	for _, r := range enabled {
		if overlay.Contains(v.sourceOf(r), r.Key) {
			toDisable[r.DocID] = true
		}
	}

	toEnable := make(map[int64]bool)
	for _, r := range disabled {
		src := v.sourceOf(r)
		if overlay.Known(src) && !overlay.Contains(src, r.Key) {
			toEnable[r.DocID] = true
		}
	}

	for id := range toDisable {
		if err := rows.SetEnabled(ctx, id, false); err != nil {
			return nil, err
		}
		result.Disabled++
	}
	for id := range toEnable {
		if toDisable[id] {
			// Another locale's copy is hidden; hidden wins.
			continue
		}
		if err := rows.SetEnabled(ctx, id, true); err != nil {
			return nil, err
		}
		result.Enabled++
	}

	result.Duration = time.Since(start)
	if result.Disabled > 0 || result.Enabled > 0 {
		slog.Info("enabled_state_revalidated",
			slog.Int("checked", result.Checked),
			slog.Int("disabled", result.Disabled),
			slog.Int("enabled", result.Enabled),
			slog.Duration("duration", result.Duration))
	}
	return result, nil
}

func (v *Validator) sourceOf(r store.IndexedRow) string {
	if r.SourceID == "" {
		return v.appSourceID
	}
	return r.SourceID
}
