package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was renamed away.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one change to a watched file.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is the quiet time before a batch is emitted.
	// Default: 200ms
	DebounceWindow time.Duration

	// MinInterval is the minimum time between two handler calls.
	// Negative disables pacing. Default: 5s
	MinInterval time.Duration

	// Extensions are the file suffixes that count as changes.
	// Default: .yaml, .yml, .toml
	Extensions []string

	// Files are extra base names watched regardless of extension.
	Files []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 200 * time.Millisecond,
		MinInterval:    5 * time.Second,
		Extensions:     []string{".yaml", ".yml", ".toml"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.MinInterval < 0 {
		o.MinInterval = 0
	} else if o.MinInterval == 0 {
		o.MinInterval = defaults.MinInterval
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	return o
}

// relevant reports whether a change to path should trigger the handler.
// Editor swap files and hidden files never do.
func (o Options) relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	for _, f := range o.Files {
		if base == f {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range o.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
