package source

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry is the explicit list of sources to crawl. Sources are either
// registered directly or discovered from descriptor directories, which are
// rescanned on every call to Sources so added and removed files show up
// in the next pass.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	byID    map[string]Source
	dirs    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Source)}
}

// Register adds src. Ids must be unique.
func (r *Registry) Register(src Source) error {
	if src == nil || src.ID() == "" {
		return fmt.Errorf("source must have an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[src.ID()]; ok {
		return fmt.Errorf("source %q already registered", src.ID())
	}
	r.byID[src.ID()] = src
	r.sources = append(r.sources, src)
	return nil
}

// AddDir registers a directory of descriptor files.
func (r *Registry) AddDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs = append(r.dirs, dir)
}

// Dirs returns the registered descriptor directories.
func (r *Registry) Dirs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.dirs...)
}

// Get returns a directly registered source by id.
func (r *Registry) Get(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// Sources returns registered sources in registration order followed by
// the descriptor files of every directory, sorted by path. A file source
// whose id collides with an earlier source is skipped.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	out := append([]Source(nil), r.sources...)
	dirs := append([]string(nil), r.dirs...)
	seen := make(map[string]bool, len(r.byID))
	for id := range r.byID {
		seen[id] = true
	}
	r.mu.RUnlock()

	for _, dir := range dirs {
		files, err := LoadDir(dir)
		if err != nil {
			slog.Warn("descriptor_dir_unreadable",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
			continue
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Path() < files[j].Path() })
		for _, f := range files {
			if seen[f.ID()] {
				slog.Warn("descriptor_duplicate_id",
					slog.String("id", f.ID()),
					slog.String("path", f.Path()))
				continue
			}
			seen[f.ID()] = true
			out = append(out, f)
		}
	}
	return out
}
