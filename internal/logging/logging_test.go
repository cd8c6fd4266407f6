package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

func TestLogPath(t *testing.T) {
	path := LogPath("/data")
	if path != filepath.Join("/data", "logs", LogFileName) {
		t.Errorf("unexpected log path: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/data")

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation defaults: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be false")
	}
	if cfg.FilePath != LogPath("/data") {
		t.Errorf("unexpected file path: %s", cfg.FilePath)
	}
}

func TestSetup_WritesJSONWithContextAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "test.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	ctx := slogctx.Append(context.Background(), "pass_id", "p-123")
	logger.DebugContext(ctx, "index_pass_started", "locale", "en_US")
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"index_pass_started"`, `"pass_id":"p-123"`, `"locale":"en_US"`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line missing %s: %s", want, line)
		}
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "dropped") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("warn record missing")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tc := range tests {
		if level := LevelFromString(tc.input); level.String() != tc.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tc.input, level.String(), tc.expected)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	dataDir := t.TempDir()

	if _, err := FindLogFile("", dataDir); err == nil {
		t.Error("expected error before any log exists")
	}
	if _, err := FindLogFile("/nonexistent/log.log", dataDir); err == nil {
		t.Error("expected error for missing explicit file")
	}

	w, err := NewRotatingWriter(LogPath(dataDir), 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	_ = w.Close()

	found, err := FindLogFile("", dataDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != LogPath(dataDir) {
		t.Errorf("expected %s, got %s", LogPath(dataDir), found)
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = w.Close() }()
	w.SetImmediateSync(false)

	// Four writes of 600KB each into 1MB files with two backups kept.
	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 4; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, p := range []string{logPath, logPath + ".1", logPath + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist", p)
		}
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("expected oldest rotated file to be dropped")
	}
}

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logPath, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(logPath, 1, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	_, _ = w.Write([]byte("second\n"))
	if err := w.Sync(); err != nil {
		t.Errorf("Sync failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	data, _ := os.ReadFile(logPath)
	if string(data) != "first\nsecond\n" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	w.SetImmediateSync(false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = fmt.Fprintf(w, "writer %d line %d\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	_ = w.Close()

	data, _ := os.ReadFile(logPath)
	if got := strings.Count(string(data), "\n"); got != 400 {
		t.Errorf("expected 400 lines, got %d", got)
	}
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestViewer_TailFilters(t *testing.T) {
	path := writeLog(t,
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"result_dropped","doc_id":1}`,
		`{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"index_pass_complete","rows":12}`,
		`not json`,
		`{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"source_skipped","source":"remote"}`,
	)

	all, err := NewViewer(ViewerConfig{}, os.Stdout).Tail(path, 10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 entries, got %d", len(all))
	}

	last, _ := NewViewer(ViewerConfig{}, os.Stdout).Tail(path, 2)
	if len(last) != 2 || last[1].Msg != "source_skipped" {
		t.Errorf("unexpected tail: %+v", last)
	}

	warn, _ := NewViewer(ViewerConfig{Level: "warn"}, os.Stdout).Tail(path, 10)
	// The unparseable line has no level and passes the level filter.
	if len(warn) != 2 {
		t.Errorf("expected 2 entries at warn, got %d", len(warn))
	}

	grep, _ := NewViewer(ViewerConfig{Pattern: regexp.MustCompile("index_pass")}, os.Stdout).Tail(path, 10)
	if len(grep) != 1 || grep[0].Attrs["rows"] != float64(12) {
		t.Errorf("unexpected pattern match: %+v", grep)
	}
}

func TestViewer_TailMissingFile(t *testing.T) {
	if _, err := NewViewer(ViewerConfig{}, os.Stdout).Tail("/nonexistent.log", 5); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, os.Stdout)
	e := parseLine(`{"time":"2026-01-02T10:00:01.5Z","level":"INFO","msg":"query_complete","results":3,"ranking":"succeeded"}`)

	got := v.FormatEntry(e)
	want := "10:00:01.500 INFO  query_complete ranking=succeeded results=3"
	if got != want {
		t.Errorf("FormatEntry = %q, want %q", got, want)
	}

	raw := parseLine("plain text")
	if v.FormatEntry(raw) != "plain text" {
		t.Error("unparseable lines should be returned as is")
	}
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)
	v.Print([]LogEntry{parseLine(`{"level":"WARN","msg":"a"}`), parseLine("b")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "WARN  a") || lines[1] != "b" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t, `{"level":"INFO","msg":"old"}`)
	v := NewViewer(ViewerConfig{}, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()
	time.Sleep(150 * time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"level":"INFO","msg":"new"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "new" {
			t.Errorf("expected appended entry, got %q", e.Msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}
