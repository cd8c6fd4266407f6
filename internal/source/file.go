package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
)

// Descriptor is the on-disk form of a source.
//
//	id: com.example.network
//	version: "3"
//	locale: en_US
//	provider:
//	  class_name: NetworkDashboard
//	non_indexable: [tether_settings]
//	screens:
//	  - title: Network & internet
//	    children:
//	      - key: main_toggle_wifi
//	        kind: checkbox
//	        title: Wi‑Fi
type Descriptor struct {
	ID      string `yaml:"id" toml:"id"`
	Version string `yaml:"version" toml:"version"`

	// Locale is applied to raw items that leave theirs blank.
	Locale string `yaml:"locale" toml:"locale"`

	Provider     Defaults  `yaml:"provider" toml:"provider"`
	NonIndexable []string  `yaml:"non_indexable" toml:"non_indexable"`
	Screens      []Screen  `yaml:"screens" toml:"screens"`
	Raw          []RawItem `yaml:"raw" toml:"raw"`

	// Unresolved marks a source whose provider is known but unreachable.
	Unresolved bool `yaml:"unresolved" toml:"unresolved"`
}

// FileSource is a source backed by one descriptor file. The file is read
// on every call, so edits are picked up by the next pass.
type FileSource struct {
	id   string
	path string
}

var (
	_ Source   = (*FileSource)(nil)
	_ Provider = (*FileSource)(nil)
)

// IsDescriptorFile reports whether path has a descriptor extension.
func IsDescriptorFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".toml":
		return true
	default:
		return false
	}
}

// LoadDir returns a FileSource for every descriptor in dir. Files that
// cannot be parsed are still returned; their failure surfaces when they
// are crawled.
func LoadDir(dir string) ([]*FileSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor dir: %w", err)
	}

	var out []*FileSource
	for _, e := range entries {
		if e.IsDir() || !IsDescriptorFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		out = append(out, NewFileSource(path))
	}
	return out, nil
}

// NewFileSource creates a source for path. Its id is the descriptor's id,
// or the file name without extension when the file has none or cannot be
// read.
func NewFileSource(path string) *FileSource {
	fs := &FileSource{path: path}
	if d, err := fs.load(); err == nil && d.ID != "" {
		fs.id = d.ID
	} else {
		fs.id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return fs
}

// Path returns the descriptor file path.
func (f *FileSource) Path() string { return f.path }

func (f *FileSource) ID() string { return f.id }

// Identity is the id plus a hash of the file content, so any edit changes
// the source fingerprint.
func (f *FileSource) Identity() string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return f.id + "@unreadable"
	}
	sum := sha256.Sum256(data)
	return f.id + "@" + hex.EncodeToString(sum[:8])
}

func (f *FileSource) Defaults() Defaults {
	d, err := f.load()
	if err != nil {
		return Defaults{}
	}
	return d.Provider
}

func (f *FileSource) Screens(_ context.Context, _ string) ([]Screen, error) {
	d, err := f.resolved()
	if err != nil {
		return nil, err
	}
	return d.Screens, nil
}

func (f *FileSource) RawItems(_ context.Context, locale string) ([]RawItem, error) {
	d, err := f.resolved()
	if err != nil {
		return nil, err
	}
	items := make([]RawItem, len(d.Raw))
	for i, r := range d.Raw {
		if r.Locale == "" {
			r.Locale = d.Locale
		}
		if r.Locale == "" {
			r.Locale = locale
		}
		items[i] = r
	}
	return items, nil
}

func (f *FileSource) NonIndexableKeys(_ context.Context) ([]string, error) {
	d, err := f.resolved()
	if err != nil {
		return nil, err
	}
	return d.NonIndexable, nil
}

func (f *FileSource) resolved() (*Descriptor, error) {
	d, err := f.load()
	if err != nil {
		return nil, err
	}
	if d.Unresolved {
		return nil, serrors.New(serrors.ErrCodeSourceUnresolved,
			fmt.Sprintf("provider for %s cannot be resolved", f.id), ErrUnresolved)
	}
	return d, nil
}

func (f *FileSource) load() (*Descriptor, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeDescriptorInvalid,
			fmt.Sprintf("failed to read descriptor %s", f.path), err)
	}
	d, err := ParseDescriptor(f.path, data)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ParseDescriptor decodes data as YAML or TOML based on the extension of
// name.
func ParseDescriptor(name string, data []byte) (*Descriptor, error) {
	var d Descriptor
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		err = toml.Unmarshal(data, &d)
	default:
		err = yaml.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeDescriptorInvalid,
			fmt.Sprintf("failed to parse descriptor %s", name), err)
	}
	return &d, nil
}
