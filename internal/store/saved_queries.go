package store

import (
	"context"
	"fmt"
	"time"
)

// InsertSavedQuery replaces any saved query with the same text.
func (s *Store) InsertSavedQuery(ctx context.Context, query string, at time.Time) error {
	db, done, err := s.reader()
	if err != nil {
		return err
	}
	defer done()

	if _, err := db.ExecContext(ctx, "DELETE FROM saved_queries WHERE query = ?", query); err != nil {
		return fmt.Errorf("failed to delete saved query: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO saved_queries (query, timestamp) VALUES (?, ?)", query, at.UnixNano()); err != nil {
		return fmt.Errorf("failed to insert saved query: %w", err)
	}
	return nil
}

// TrimSavedQueries deletes the oldest saved queries beyond capacity and
// returns how many were removed.
func (s *Store) TrimSavedQueries(ctx context.Context, capacity int) (int, error) {
	db, done, err := s.reader()
	if err != nil {
		return 0, err
	}
	defer done()

	res, err := db.ExecContext(ctx, `
		DELETE FROM saved_queries WHERE query IN (
			SELECT query FROM saved_queries
			ORDER BY timestamp DESC, rowid DESC
			LIMIT -1 OFFSET ?
		)`, capacity)
	if err != nil {
		return 0, fmt.Errorf("failed to trim saved queries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SavedQueries returns up to limit saved queries, most recent first. A
// non-empty prefix restricts them to queries starting with it.
func (s *Store) SavedQueries(ctx context.Context, prefix string, limit int) ([]SavedQuery, error) {
	db, done, err := s.reader()
	if err != nil {
		return nil, err
	}
	defer done()

	rows, err := db.QueryContext(ctx, `
		SELECT query, timestamp FROM saved_queries
		WHERE query LIKE ? ESCAPE '\'
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?`, EscapeLike(prefix)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved queries: %w", err)
	}
	defer rows.Close()

	var out []SavedQuery
	for rows.Next() {
		var q SavedQuery
		var ts int64
		if err := rows.Scan(&q.Query, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan saved query: %w", err)
		}
		q.Timestamp = time.Unix(0, ts)
		out = append(out, q)
	}
	return out, rows.Err()
}

// ClearSavedQueries deletes all saved queries.
func (s *Store) ClearSavedQueries(ctx context.Context) error {
	db, done, err := s.reader()
	if err != nil {
		return err
	}
	defer done()

	if _, err := db.ExecContext(ctx, "DELETE FROM saved_queries"); err != nil {
		return fmt.Errorf("failed to clear saved queries: %w", err)
	}
	return nil
}
