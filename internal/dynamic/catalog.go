// Package dynamic provides the result sources that are not crawled into
// the index: installed apps, accessibility services and input devices.
// Each is matched by word prefix at query time.
package dynamic

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	serrors "github.com/Aman-CERP/settingsearch/internal/errors"
)

// App is an installed application.
type App struct {
	Name    string `yaml:"name"`
	Package string `yaml:"package"`
	UserID  int    `yaml:"user_id"`
	Icon    string `yaml:"icon"`

	// System apps are listed only when updated, launchable or a home app.
	System     bool `yaml:"system"`
	Updated    bool `yaml:"updated"`
	Launchable bool `yaml:"launchable"`
	Home       bool `yaml:"home"`
}

// visible reports whether the app may be offered as a result.
func (a App) visible() bool {
	if !a.System {
		return true
	}
	return a.Updated || a.Launchable || a.Home
}

// Service is an accessibility service or an input device.
type Service struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
	Package string `yaml:"package"`
	Class   string `yaml:"class"`
	Icon    string `yaml:"icon"`
}

// AppSection lists apps and the breadcrumbs of the screen they open.
type AppSection struct {
	Breadcrumbs []string `yaml:"breadcrumbs"`
	Items       []App    `yaml:"items"`
}

// ServiceSection lists services and the breadcrumbs of their screen.
type ServiceSection struct {
	Breadcrumbs []string  `yaml:"breadcrumbs"`
	Items       []Service `yaml:"items"`
}

// Catalog is the content of the dynamic sources.
type Catalog struct {
	Apps          AppSection     `yaml:"apps"`
	Accessibility ServiceSection `yaml:"accessibility"`
	InputDevices  ServiceSection `yaml:"input_devices"`
}

// CatalogSource hands out the current catalog.
type CatalogSource interface {
	Catalog() *Catalog
}

// Catalog returns c itself, so a fixed catalog is a CatalogSource.
func (c *Catalog) Catalog() *Catalog { return c }

// ParseCatalog decodes a YAML catalog and fills default breadcrumbs.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, serrors.New(serrors.ErrCodeDescriptorInvalid, "failed to parse catalog", err)
	}
	if len(c.Apps.Breadcrumbs) == 0 {
		c.Apps.Breadcrumbs = []string{"Apps"}
	}
	if len(c.Accessibility.Breadcrumbs) == 0 {
		c.Accessibility.Breadcrumbs = []string{"Accessibility"}
	}
	if len(c.InputDevices.Breadcrumbs) == 0 {
		c.InputDevices.Breadcrumbs = []string{"System", "Languages & input"}
	}
	return &c, nil
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// FileCatalog is a catalog backed by a file that can be reloaded while
// queries run.
type FileCatalog struct {
	path string

	mu      sync.RWMutex
	current *Catalog
}

// NewFileCatalog loads path. A missing file yields an empty catalog.
func NewFileCatalog(path string) (*FileCatalog, error) {
	fc := &FileCatalog{path: path}
	if err := fc.Reload(); err != nil {
		return nil, err
	}
	return fc, nil
}

// Path returns the catalog file path.
func (fc *FileCatalog) Path() string {
	return fc.path
}

// Reload re-reads the file. On a parse error the previous catalog is kept.
func (fc *FileCatalog) Reload() error {
	var (
		c   *Catalog
		err error
	)
	if _, statErr := os.Stat(fc.path); os.IsNotExist(statErr) {
		c, err = ParseCatalog(nil)
	} else {
		c, err = LoadCatalog(fc.path)
	}
	if err != nil {
		return err
	}

	fc.mu.Lock()
	fc.current = c
	fc.mu.Unlock()

	slog.Debug("catalog_loaded",
		slog.String("path", fc.path),
		slog.Int("apps", len(c.Apps.Items)),
		slog.Int("accessibility", len(c.Accessibility.Items)),
		slog.Int("input_devices", len(c.InputDevices.Items)))
	return nil
}

// Catalog returns the last loaded catalog.
func (fc *FileCatalog) Catalog() *Catalog {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return fc.current
}
