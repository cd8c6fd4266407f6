package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/settingsearch/internal/search"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Index complete") }, "✓ Index complete\n"},
		{"warning", func(w *Writer) { w.Warningf("%d sources skipped", 2) }, "! 2 sources skipped\n"},
		{"error", func(w *Writer) { w.Errorf("store %s", "unavailable") }, "✗ store unavailable\n"},
		{"status without icon", func(w *Writer) { w.Status("", "indented") }, "   indented\n"},
		{"statusf", func(w *Writer) { w.Statusf("*", "%s!", "done") }, "* done!\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a plain writer
			buf := &bytes.Buffer{}
			w := NewWithColor(buf, false)

			// When: writing the line
			tt.write(w)

			// Then: the exact text is printed
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestNew_BufferIsNotATerminal(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	assert.False(t, w.UseColor())
	assert.False(t, IsTTY(buf))
	assert.False(t, IsTTY(nil))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestWriter_Results(t *testing.T) {
	// Given: two results, one scored
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)
	results := []search.Result{
		{Title: "Wi-Fi", Summary: "Connect to networks", Breadcrumbs: []string{"Network & internet"}, Rank: 0, Score: 1.25},
		{Title: "Wi-Fi calling", Rank: 3},
	}

	// When: printing them
	w.Results(results, 0)

	// Then: titles, crumbs and summaries appear in order
	out := buf.String()
	assert.Contains(t, out, " 1. Wi-Fi (rank 0, score 1.25)")
	assert.Contains(t, out, "    Network & internet\n")
	assert.Contains(t, out, "    Connect to networks\n")
	assert.Contains(t, out, " 2. Wi-Fi calling (rank 3)")
	assert.Less(t, strings.Index(out, "Wi-Fi (rank"), strings.Index(out, "Wi-Fi calling"))
}

func TestWriter_ResultsLimitAndEmpty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.Results([]search.Result{{Title: "A"}, {Title: "B"}, {Title: "C"}}, 2)
	assert.NotContains(t, buf.String(), "C")

	buf.Reset()
	w.Results(nil, 5)
	assert.Contains(t, buf.String(), "No matching settings")
}

func TestWriter_KeyValueAndList(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, false)

	w.Header("Status")
	w.KeyValue("rows", 42)
	w.List([]string{"wifi", "bluetooth"})

	out := buf.String()
	assert.Contains(t, out, "Status\n")
	assert.Contains(t, out, "rows:")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, " 1. wifi\n")
	assert.Contains(t, out, " 2. bluetooth\n")
}

func TestWriter_ColorStylesRender(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, true)

	w.Success("ok")

	assert.True(t, w.UseColor())
	assert.Contains(t, buf.String(), "ok")
}
