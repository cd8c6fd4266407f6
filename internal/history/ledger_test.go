package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

func newLedger(t *testing.T, capacity int) *Ledger {
	t.Helper()
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	l := New(st, capacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return l
}

func TestLedger_Capacity(t *testing.T) {
	// Given: a ledger of 64
	l := newLedger(t, DefaultCapacity)
	ctx := context.Background()

	// When: 70 distinct queries are recorded
	for i := 0; i < 70; i++ {
		require.NoError(t, l.Record(ctx, fmt.Sprintf("query %02d", i)))
	}

	// Then: exactly the 64 most recent remain
	all, err := l.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, all, 64)
	assert.Equal(t, "query 69", all[0].Query)
	assert.Equal(t, "query 06", all[63].Query)
}

func TestLedger_RecordExistingMovesToFront(t *testing.T) {
	l := newLedger(t, 3)
	ctx := context.Background()
	for _, q := range []string{"wifi", "bluetooth", "battery"} {
		require.NoError(t, l.Record(ctx, q))
	}

	require.NoError(t, l.Record(ctx, "wifi"))

	all, err := l.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"wifi", "battery", "bluetooth"}, Texts(all))
}

func TestLedger_ListDefaultLimit(t *testing.T) {
	l := newLedger(t, DefaultCapacity)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		require.NoError(t, l.Record(ctx, fmt.Sprintf("q%d", i)))
	}

	recent, err := l.List(ctx, 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"q7", "q6", "q5", "q4", "q3"}, Texts(recent))
}

func TestLedger_Suggest(t *testing.T) {
	l := newLedger(t, DefaultCapacity)
	ctx := context.Background()
	for _, q := range []string{"wifi", "display", "wi-fi calling", "100%"} {
		require.NoError(t, l.Record(ctx, q))
	}

	got, err := l.Suggest(ctx, "wi", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"wi-fi calling", "wifi"}, Texts(got))

	got, err = l.Suggest(ctx, "%", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLedger_Clear(t *testing.T) {
	l := newLedger(t, DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, "wifi"))

	require.NoError(t, l.Clear(ctx))

	all, err := l.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedger_RecordRejectsEmpty(t *testing.T) {
	l := newLedger(t, DefaultCapacity)

	err := l.Record(context.Background(), "  ")

	assert.Equal(t, serrors.ErrCodeQueryEmpty, serrors.GetCode(err))
}

type trimFailingStore struct {
	QueryStore
	trims int
}

func (s *trimFailingStore) TrimSavedQueries(context.Context, int) (int, error) {
	s.trims++
	return 0, errors.New("disk I/O error")
}

func TestLedger_TrimFailureKeepsInsert(t *testing.T) {
	// Given: a store whose trim step fails
	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	failing := &trimFailingStore{QueryStore: st}
	l := New(failing, 1)

	// When: recording
	err = l.Record(context.Background(), "wifi")

	// Then: the insert stands
	require.NoError(t, err)
	assert.Equal(t, 1, failing.trims)
	all, err := st.SavedQueries(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"wifi"}, Texts(all))
}

func TestLedger_ClosedStore(t *testing.T) {
	st, err := store.Open("")
	require.NoError(t, err)
	l := New(st, 0)
	require.NoError(t, st.Close())

	err = l.Record(context.Background(), "wifi")

	assert.Equal(t, serrors.ErrCodeStoreUnavailable, serrors.GetCode(err))
	assert.Equal(t, DefaultCapacity, l.Capacity())
}
