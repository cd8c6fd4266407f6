package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Meta returns what the last pass recorded for locale, or nil if the
// locale was never indexed.
func (s *Store) Meta(ctx context.Context, locale string) (*IndexMeta, error) {
	db, done, err := s.reader()
	if err != nil {
		return nil, err
	}
	defer done()

	var (
		m  IndexMeta
		ts int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT locale, build_fingerprint, source_fingerprint, indexed_at
		FROM meta WHERE locale = ?`, locale).
		Scan(&m.Locale, &m.BuildFingerprint, &m.SourceFingerprint, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	m.IndexedAt = time.UnixMilli(ts)
	return &m, nil
}

// NeedsFullRebuild reports whether locale was never indexed or was indexed
// with a different build or source set.
func (s *Store) NeedsFullRebuild(ctx context.Context, locale, build, sources string) (bool, error) {
	m, err := s.Meta(ctx, locale)
	if err != nil {
		return false, err
	}
	if m == nil {
		return true, nil
	}
	return m.BuildFingerprint != build || m.SourceFingerprint != sources, nil
}

// RecordIndexed stores the fingerprints of a completed pass for locale.
func (s *Store) RecordIndexed(ctx context.Context, locale, build, sources string) error {
	db, done, err := s.reader()
	if err != nil {
		return err
	}
	defer done()
	return recordIndexed(ctx, db, locale, build, sources, time.Now())
}

func recordIndexed(ctx context.Context, q querier, locale, build, sources string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO meta (locale, build_fingerprint, source_fingerprint, indexed_at)
		VALUES (?, ?, ?, ?)`, locale, build, sources, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record index metadata: %w", err)
	}
	return nil
}
