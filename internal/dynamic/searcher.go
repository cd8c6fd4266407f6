package dynamic

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/Aman-CERP/settingsearch/internal/normalize"
	"github.com/Aman-CERP/settingsearch/internal/search"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// Open actions of the dynamic results.
const (
	ActionAppDetails    = "android.settings.APPLICATION_DETAILS_SETTINGS"
	ActionAccessibility = "android.settings.ACCESSIBILITY_SETTINGS"
	ActionInputMethod   = "android.settings.INPUT_METHOD_SETTINGS"
)

// Searcher is a source of already ranked results.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// rankFor maps a word difference to a result rank.
func rankFor(diff int) int {
	rank := store.TopRank + diff
	if rank > store.BottomRank {
		return store.BottomRank
	}
	return rank
}

func stableID(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return int64(h.Sum64())
}

// AppSearcher matches installed apps by name.
type AppSearcher struct {
	catalog CatalogSource
}

// NewAppSearcher creates an app searcher.
func NewAppSearcher(c CatalogSource) *AppSearcher {
	return &AppSearcher{catalog: c}
}

func (s *AppSearcher) Name() string { return "apps" }

// Search returns one result per matching app and profile.
func (s *AppSearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	section := s.catalog.Catalog().Apps

	var results []search.Result
	for _, app := range section.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !app.visible() {
			continue
		}
		diff := normalize.WordDifference(app.Name, query)
		if diff == normalize.NoMatch {
			continue
		}
		r, err := search.NewBuilder().
			Title(app.Name).
			Breadcrumbs(section.Breadcrumbs).
			Rank(rankFor(diff)).
			StableID(stableID("app", app.Package, strconv.Itoa(app.UserID))).
			Action(store.OpenAction{Action: ActionAppDetails, TargetPackage: app.Package}).
			Icon(app.Icon).
			Build()
		if err != nil {
			continue
		}
		results = append(results, r)
	}
	search.SortByRank(results)
	return results, nil
}

// ServiceSearcher matches the services of one catalog section.
type ServiceSearcher struct {
	name    string
	action  string
	catalog CatalogSource
	section func(*Catalog) ServiceSection
}

// NewAccessibilitySearcher matches accessibility services.
func NewAccessibilitySearcher(c CatalogSource) *ServiceSearcher {
	return &ServiceSearcher{
		name:    "accessibility",
		action:  ActionAccessibility,
		catalog: c,
		section: func(c *Catalog) ServiceSection { return c.Accessibility },
	}
}

// NewInputDeviceSearcher matches input methods and keyboards.
func NewInputDeviceSearcher(c CatalogSource) *ServiceSearcher {
	return &ServiceSearcher{
		name:    "input_devices",
		action:  ActionInputMethod,
		catalog: c,
		section: func(c *Catalog) ServiceSection { return c.InputDevices },
	}
}

func (s *ServiceSearcher) Name() string { return s.name }

// Search returns the services whose name matches query.
func (s *ServiceSearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	section := s.section(s.catalog.Catalog())

	var results []search.Result
	for _, svc := range section.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diff := normalize.WordDifference(svc.Name, query)
		if diff == normalize.NoMatch {
			continue
		}
		r, err := search.NewBuilder().
			Title(svc.Name).
			Summary(svc.Summary).
			Breadcrumbs(section.Breadcrumbs).
			Rank(rankFor(diff)).
			StableID(stableID(s.name, svc.Package, svc.Class)).
			Action(store.OpenAction{
				Action:        s.action,
				TargetPackage: svc.Package,
				TargetClass:   svc.Class,
			}).
			Icon(svc.Icon).
			Build()
		if err != nil {
			continue
		}
		results = append(results, r)
	}
	search.SortByRank(results)
	return results, nil
}
