package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/normalize"
)

// Batch is one all-or-nothing write transaction over the index. Nothing
// written through a Batch is visible until Commit; Rollback (or a failed
// Commit) discards all of it.
//
// A Batch holds the store's only connection, so callers must read through
// the Batch, not the Store, until it is finished.
type Batch struct {
	tx   *sql.Tx
	done bool

	upserted int
	dropped  int
}

// BeginBulkUpdate starts a Batch.
func (s *Store) BeginBulkUpdate(ctx context.Context) (*Batch, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return nil, serrors.New(serrors.ErrCodeStoreBusy, "index store is busy", err)
		}
		return nil, serrors.StoreError("failed to begin transaction", err)
	}
	return &Batch{tx: tx}, nil
}

// UpsertRow replaces the row with the same (doc id, locale). Rows with an
// empty title are dropped: false is returned with a nil error.
func (b *Batch) UpsertRow(ctx context.Context, row IndexedRow) (bool, error) {
	ok, err := upsertRow(ctx, b.tx, row)
	if err != nil {
		return false, err
	}
	if ok {
		b.upserted++
	} else {
		b.dropped++
	}
	return ok, nil
}

// AddSiteMapEdge records a parent/child screen link for breadcrumbs.
func (b *Batch) AddSiteMapEdge(ctx context.Context, e SiteMapEdge) error {
	_, err := b.tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO site_map (parent_class, parent_title, child_class, child_title)
		VALUES (?, ?, ?, ?)`,
		e.ParentClass, e.ParentTitle, e.ChildClass, e.ChildTitle)
	if err != nil {
		return fmt.Errorf("failed to insert site map edge: %w", err)
	}
	return nil
}

// SetEnabled flips the enabled bit of docID inside the batch.
func (b *Batch) SetEnabled(ctx context.Context, docID int64, enabled bool) error {
	return setEnabled(ctx, b.tx, docID, enabled)
}

// RowsWhereEnabledEquals reads rows as seen by the batch.
func (b *Batch) RowsWhereEnabledEquals(ctx context.Context, enabled bool) ([]IndexedRow, error) {
	return rowsWhereEnabled(ctx, b.tx, enabled)
}

// RecordIndexed stores the fingerprints of this pass for locale.
func (b *Batch) RecordIndexed(ctx context.Context, locale, build, sources string) error {
	return recordIndexed(ctx, b.tx, locale, build, sources, time.Now())
}

// Reset deletes all rows, metadata and site map edges. It is the only
// wipe of the index; Store.DropAndRecreate runs it in its own batch.
func (b *Batch) Reset(ctx context.Context) error {
	return clearDerived(ctx, b.tx)
}

func clearDerived(ctx context.Context, q querier) error {
	for _, table := range derivedTables {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Counts returns how many rows were upserted and dropped so far.
func (b *Batch) Counts() (upserted, dropped int) {
	return b.upserted, b.dropped
}

// Commit makes the batch visible.
func (b *Batch) Commit() error {
	if b.done {
		return sql.ErrTxDone
	}
	b.done = true
	if err := b.tx.Commit(); err != nil {
		return serrors.StoreError("failed to commit transaction", err)
	}
	return nil
}

// Rollback discards the batch. It is a no-op after Commit, so it can be
// deferred.
func (b *Batch) Rollback() {
	if b.done {
		return
	}
	b.done = true
	_ = b.tx.Rollback()
}

const upsertSQL = `
INSERT OR REPLACE INTO prefs_index (
	doc_id, locale, rank,
	data_title, data_title_normalized,
	data_summary_on, data_summary_on_normalized,
	data_summary_off, data_summary_off_normalized,
	data_entries, data_keywords,
	data_title_folded, data_summary_on_folded, data_summary_off_folded,
	data_entries_folded, data_keywords_folded,
	class_name, child_class_name, screen_title, icon,
	intent_action, intent_target_package, intent_target_class,
	enabled, data_key_ref, user_id, source_id,
	payload_type, payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func upsertRow(ctx context.Context, q querier, row IndexedRow) (bool, error) {
	if row.Title == "" {
		slog.Debug("row_dropped",
			slog.Int64("doc_id", row.DocID),
			slog.String("reason", "empty title"))
		return false, nil
	}

	ptype, pdata, err := EncodePayload(row.Payload)
	if err != nil {
		// The row is still searchable without its payload.
		slog.Warn("payload_encode_failed",
			slog.Int64("doc_id", row.DocID),
			slog.String("error", err.Error()))
		ptype, pdata = PayloadNone, nil
	}

	_, err = q.ExecContext(ctx, upsertSQL,
		row.DocID, row.Locale, ClampRank(row.Rank),
		row.Title, row.TitleNormalized,
		row.SummaryOn, row.SummaryOnNormalized,
		row.SummaryOff, row.SummaryOffNormalized,
		row.Entries, row.Keywords,
		normalize.Fold(row.Title), normalize.Fold(row.SummaryOn), normalize.Fold(row.SummaryOff),
		foldEntries(row.Entries), normalize.Fold(row.Keywords),
		row.ClassName, row.ChildClassName, row.ScreenTitle, row.IconRef,
		row.Action.Action, row.Action.TargetPackage, row.Action.TargetClass,
		boolToInt(row.Enabled), row.Key, row.UserID, row.SourceID,
		int(ptype), pdata,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert row %d: %w", row.DocID, err)
	}
	return true, nil
}

// foldEntries folds each entry on its own so the separator survives.
func foldEntries(entries string) string {
	if entries == "" {
		return ""
	}
	parts := strings.Split(entries, normalize.EntriesSeparator)
	for i, e := range parts {
		parts[i] = normalize.Fold(e)
	}
	return strings.Join(parts, normalize.EntriesSeparator)
}

func setEnabled(ctx context.Context, q querier, docID int64, enabled bool) error {
	_, err := q.ExecContext(ctx, "UPDATE prefs_index SET enabled = ? WHERE doc_id = ?",
		boolToInt(enabled), docID)
	if err != nil {
		return fmt.Errorf("failed to set enabled for %d: %w", docID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
