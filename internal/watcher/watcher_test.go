package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.WithDefaults()
	assert.Equal(t, DefaultOptions(), got)

	got = Options{DebounceWindow: time.Second, MinInterval: -1}.WithDefaults()
	assert.Equal(t, time.Second, got.DebounceWindow)
	assert.Zero(t, got.MinInterval)
	assert.Equal(t, []string{".yaml", ".yml", ".toml"}, got.Extensions)
}

func TestOptions_Relevant(t *testing.T) {
	opts := Options{Files: []string{"catalog"}}.WithDefaults()

	tests := []struct {
		path string
		want bool
	}{
		{"/d/network.yaml", true},
		{"/d/display.YML", true},
		{"/d/sound.toml", true},
		{"/d/catalog", true},
		{"/d/readme.md", false},
		{"/d/.network.yaml.swp", false},
		{"/d/.hidden.yaml", false},
		{"/d/network.yaml~", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, opts.relevant(tt.path))
		})
	}
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(DefaultOptions(), nil)
	assert.Error(t, err)
}

// recorder collects handler calls.
type recorder struct {
	mu    sync.Mutex
	calls [][]FileEvent
}

func (r *recorder) handle(_ context.Context, events []FileEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, events)
}

func (r *recorder) snapshot() [][]FileEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]FileEvent(nil), r.calls...)
}

func (r *recorder) paths() map[string]bool {
	seen := make(map[string]bool)
	for _, call := range r.snapshot() {
		for _, e := range call {
			seen[filepath.Base(e.Path)] = true
		}
	}
	return seen
}

func startWatcher(t *testing.T, opts Options, dir string) (*DirWatcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	w, err := New(opts, rec.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx, dir) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		<-errCh
	})

	// Give fsnotify time to register the directory.
	time.Sleep(100 * time.Millisecond)
	return w, rec
}

func TestDirWatcher_DescriptorChangeTriggers(t *testing.T) {
	// Given: a watched descriptor directory
	dir := t.TempDir()
	w, rec := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond, MinInterval: -1}, dir)

	// When: a descriptor is written
	require.NoError(t, os.WriteFile(filepath.Join(dir, "network.yaml"), []byte("source: net\n"), 0o644))

	// Then: the handler sees it
	assert.Eventually(t, func() bool { return rec.paths()["network.yaml"] }, 2*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, w.Triggers(), uint64(1))
}

func TestDirWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	_, rec := startWatcher(t, Options{DebounceWindow: 20 * time.Millisecond, MinInterval: -1}, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".draft.yaml"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestDirWatcher_BurstsArePaced(t *testing.T) {
	// Given: a watcher allowing one call per 400ms
	dir := t.TempDir()
	_, rec := startWatcher(t, Options{DebounceWindow: 10 * time.Millisecond, MinInterval: 400 * time.Millisecond}, dir)

	// When: descriptors change in several separate bursts
	for _, name := range []string{"a.yaml", "b.yaml", "c.yaml", "d.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	// Then: every change is delivered in at most two calls
	assert.Eventually(t, func() bool { return len(rec.paths()) == 4 }, 3*time.Second, 20*time.Millisecond)
	assert.LessOrEqual(t, len(rec.snapshot()), 2)
}

func TestDirWatcher_StartMissingDir(t *testing.T) {
	rec := &recorder{}
	w, err := New(DefaultOptions(), rec.handle)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	err = w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDirWatcher_StopIsIdempotent(t *testing.T) {
	rec := &recorder{}
	w, err := New(DefaultOptions(), rec.handle)
	require.NoError(t, err)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
