// Package output formats CLI output: status lines, search results and
// key/value listings. Colour is used only on a terminal without NO_COLOR.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/settingsearch/internal/search"
)

// BreadcrumbSeparator joins breadcrumb segments for display.
const BreadcrumbSeparator = " > "

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool
	styles   Styles
}

// New creates a Writer that colours output when out is a terminal.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

// NewWithColor creates a Writer with colour forced on or off.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	styles := NoColorStyles()
	if useColor {
		styles = DefaultStyles()
	}
	return &Writer{out: out, useColor: useColor, styles: styles}
}

// UseColor reports whether output is styled.
func (w *Writer) UseColor() bool {
	return w.useColor
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Header prints a section heading.
func (w *Writer) Header(title string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(title))
}

// KeyValue prints an aligned label and value.
func (w *Writer) KeyValue(label string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.styles.Label.Render(fmt.Sprintf("%-16s", label+":")), value)
}

// List prints numbered lines.
func (w *Writer) List(items []string) {
	for i, item := range items {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Dim.Render(fmt.Sprintf("%2d.", i+1)), item)
	}
}

// Results prints search results, at most limit of them when limit > 0.
func (w *Writer) Results(results []search.Result, limit int) {
	if len(results) == 0 {
		w.Status("", "No matching settings")
		return
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	for i, r := range results {
		rank := fmt.Sprintf("rank %d", r.Rank)
		if r.Score != 0 {
			rank = fmt.Sprintf("%s, score %.2f", rank, r.Score)
		}
		_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
			w.styles.Dim.Render(fmt.Sprintf("%2d.", i+1)),
			w.styles.Header.Render(r.Title),
			w.styles.Label.Render("("+rank+")"))
		if len(r.Breadcrumbs) > 0 {
			_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Dim.Render(strings.Join(r.Breadcrumbs, BreadcrumbSeparator)))
		}
		if r.Summary != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", r.Summary)
		}
	}
}
