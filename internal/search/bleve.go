package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/settingsearch/internal/store"
)

// SettingsAnalyzerName is the analyzer of the relevance index.
const SettingsAnalyzerName = "settings_analyzer"

// defaultMaxHits bounds the scores returned per query.
const defaultMaxHits = 200

// scoredDocument is what the relevance index stores per row.
type scoredDocument struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Keywords string `json:"keywords"`
}

// BleveScorer scores rows with BM25 over an in-memory Bleve index per
// locale. Rebuild swaps the indices atomically.
type BleveScorer struct {
	mu      sync.RWMutex
	indices map[string]bleve.Index
	maxHits int
	closed  bool
}

var _ Scorer = (*BleveScorer)(nil)

// NewBleveScorer creates an empty scorer.
func NewBleveScorer() *BleveScorer {
	return &BleveScorer{
		indices: make(map[string]bleve.Index),
		maxHits: defaultMaxHits,
	}
}

func newScorerMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(SettingsAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = SettingsAnalyzerName
	return m, nil
}

// Rebuild replaces the indexed content with rows. Disabled rows are left
// out.
func (b *BleveScorer) Rebuild(ctx context.Context, rows []store.IndexedRow) error {
	m, err := newScorerMapping()
	if err != nil {
		return err
	}

	indices := make(map[string]bleve.Index)
	batches := make(map[string]*bleve.Batch)
	closeAll := func() {
		for _, idx := range indices {
			_ = idx.Close()
		}
	}

	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			closeAll()
			return err
		}
		idx, ok := indices[row.Locale]
		if !ok {
			idx, err = bleve.NewMemOnly(m)
			if err != nil {
				closeAll()
				return fmt.Errorf("failed to create relevance index: %w", err)
			}
			indices[row.Locale] = idx
			batches[row.Locale] = idx.NewBatch()
		}
		doc := scoredDocument{
			Title:    row.Title + " " + row.TitleNormalized,
			Summary:  row.SummaryOn + " " + row.SummaryOff,
			Keywords: row.Keywords + " " + strings.ReplaceAll(row.Entries, "|", " "),
		}
		if err := batches[row.Locale].Index(strconv.FormatInt(row.DocID, 10), doc); err != nil {
			closeAll()
			return fmt.Errorf("failed to index document %d: %w", row.DocID, err)
		}
	}

	for locale, batch := range batches {
		if err := indices[locale].Batch(batch); err != nil {
			closeAll()
			return fmt.Errorf("failed to execute batch: %w", err)
		}
	}

	b.mu.Lock()
	old := b.indices
	b.indices = indices
	closed := b.closed
	b.mu.Unlock()

	for _, idx := range old {
		_ = idx.Close()
	}
	if closed {
		closeAll()
	}
	return nil
}

// Score returns the BM25 score of each matching doc id. The last word of
// the query also matches as a prefix, since queries are typed
// incrementally.
func (b *BleveScorer) Score(ctx context.Context, locale, q string) (map[int64]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("scorer is closed")
	}
	idx, ok := b.indices[locale]
	if !ok {
		return map[int64]float64{}, nil
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return map[int64]float64{}, nil
	}

	queries := []query.Query{bleve.NewMatchQuery(q)}
	words := strings.Fields(strings.ToLower(q))
	if last := words[len(words)-1]; last != "" {
		queries = append(queries, bleve.NewPrefixQuery(last))
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = b.maxHits

	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	scores := make(map[int64]float64, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		scores[id] = hit.Score
	}
	return scores, nil
}

// Close releases the indices.
func (b *BleveScorer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, idx := range b.indices {
		_ = idx.Close()
	}
	b.indices = nil
	return nil
}
