package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const rowColumns = `
	doc_id, locale, rank,
	data_title, data_title_normalized,
	data_summary_on, data_summary_on_normalized,
	data_summary_off, data_summary_off_normalized,
	data_entries, data_keywords,
	class_name, child_class_name, screen_title, icon,
	intent_action, intent_target_package, intent_target_class,
	enabled, data_key_ref, user_id, source_id,
	payload_type, payload`

// maxBreadcrumbDepth bounds the site map walk; it also stops cycles.
const maxBreadcrumbDepth = 10

// EscapeLike escapes LIKE wildcards in s for use with ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// QueryRows returns rows of locale where any of columns matches any of
// patterns with LIKE (ESCAPE '\'). When mustBeEnabled is set only enabled
// rows are returned.
func (s *Store) QueryRows(ctx context.Context, locale string, columns, patterns []string, mustBeEnabled bool) ([]IndexedRow, error) {
	if len(columns) == 0 || len(patterns) == 0 {
		return nil, nil
	}

	var where []string
	args := []any{locale}
	for _, col := range columns {
		if _, ok := matchableColumns[col]; !ok {
			return nil, fmt.Errorf("column %q is not matchable", col)
		}
		for _, p := range patterns {
			where = append(where, col+` LIKE ? ESCAPE '\'`)
			args = append(args, p)
		}
	}

	query := "SELECT " + rowColumns + " FROM prefs_index WHERE locale = ?"
	if mustBeEnabled {
		query += " AND enabled = 1"
	}
	query += " AND (" + strings.Join(where, " OR ") + ") ORDER BY doc_id"

	db, done, err := s.reader()
	if err != nil {
		return nil, err
	}
	defer done()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	return scanRows(rows)
}

// RowsWhereEnabledEquals returns every row, in all locales, whose enabled
// bit equals enabled.
func (s *Store) RowsWhereEnabledEquals(ctx context.Context, enabled bool) ([]IndexedRow, error) {
	db, done, err := s.reader()
	if err != nil {
		return nil, err
	}
	defer done()
	return rowsWhereEnabled(ctx, db, enabled)
}

// Rows returns all rows of locale, enabled or not.
func (s *Store) Rows(ctx context.Context, locale string) ([]IndexedRow, error) {
	db, done, err := s.reader()
	if err != nil {
		return nil, err
	}
	defer done()

	rows, err := db.QueryContext(ctx,
		"SELECT "+rowColumns+" FROM prefs_index WHERE locale = ? ORDER BY doc_id", locale)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	return scanRows(rows)
}

func rowsWhereEnabled(ctx context.Context, q querier, enabled bool) ([]IndexedRow, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+rowColumns+" FROM prefs_index WHERE enabled = ? ORDER BY doc_id, locale",
		boolToInt(enabled))
	if err != nil {
		return nil, fmt.Errorf("failed to query rows by enabled: %w", err)
	}
	return scanRows(rows)
}

// Breadcrumbs returns the titles of the screens leading to a row, root
// first, ending with screenTitle. Unknown classes give just screenTitle.
func (s *Store) Breadcrumbs(ctx context.Context, className, screenTitle string) ([]string, error) {
	db, done, err := s.reader()
	if err != nil {
		return nil, err
	}
	defer done()

	var crumbs []string
	if screenTitle != "" {
		crumbs = append(crumbs, screenTitle)
	}

	seen := map[string]bool{className: true}
	current := className
	for depth := 0; current != "" && depth < maxBreadcrumbDepth; depth++ {
		var parentClass, parentTitle string
		err := db.QueryRowContext(ctx,
			"SELECT parent_class, parent_title FROM site_map WHERE child_class = ? LIMIT 1",
			current).Scan(&parentClass, &parentTitle)
		if errors.Is(err, sql.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to walk site map: %w", err)
		}
		if seen[parentClass] {
			break
		}
		seen[parentClass] = true
		if parentTitle != "" {
			crumbs = append([]string{parentTitle}, crumbs...)
		}
		current = parentClass
	}
	return crumbs, nil
}

func scanRows(rows *sql.Rows) ([]IndexedRow, error) {
	defer rows.Close()

	var out []IndexedRow
	for rows.Next() {
		var (
			r       IndexedRow
			enabled int
			ptype   int
			pdata   []byte
		)
		err := rows.Scan(
			&r.DocID, &r.Locale, &r.Rank,
			&r.Title, &r.TitleNormalized,
			&r.SummaryOn, &r.SummaryOnNormalized,
			&r.SummaryOff, &r.SummaryOffNormalized,
			&r.Entries, &r.Keywords,
			&r.ClassName, &r.ChildClassName, &r.ScreenTitle, &r.IconRef,
			&r.Action.Action, &r.Action.TargetPackage, &r.Action.TargetClass,
			&enabled, &r.Key, &r.UserID, &r.SourceID,
			&ptype, &pdata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Enabled = enabled == 1
		r.Action.Key = r.Key

		p, err := DecodePayload(PayloadType(ptype), pdata)
		if err != nil {
			slog.Warn("payload_decode_failed",
				slog.Int64("doc_id", r.DocID),
				slog.String("error", err.Error()))
		}
		r.Payload = p
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
