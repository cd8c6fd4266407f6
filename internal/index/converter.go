package index

import (
	"hash/fnv"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/settingsearch/internal/normalize"
	"github.com/Aman-CERP/settingsearch/internal/source"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// DefaultUserID marks rows that belong to every profile.
const DefaultUserID = -1

// Contribution is what one source adds to a pass. It is built by one
// goroutine and handed to the writer as a value.
type Contribution struct {
	SourceID string
	Rows     []store.IndexedRow
	Edges    []store.SiteMapEdge
}

// DocID derives the stable row id. Rows with a key are identified by the
// key alone; the others by title, class, screen title and target class.
func DocID(key, title, className, screenTitle, targetClass string) int64 {
	h := fnv.New64a()
	if key != "" {
		_, _ = h.Write([]byte("k\x00" + key))
	} else {
		_, _ = h.Write([]byte(strings.Join([]string{"t", title, className, screenTitle, targetClass}, "\x00")))
	}
	return int64(h.Sum64())
}

// Converter turns source descriptors into rows for one locale.
type Converter struct {
	locale string
}

// NewConverter creates a converter for locale.
func NewConverter(locale string) *Converter {
	return &Converter{locale: locale}
}

// Convert builds the contribution of one source. Hidden keys decide each
// row's enabled bit. Provider defaults fill blank class and intent fields
// of the supplied screens and raw items.
func (c *Converter) Convert(sourceID string, defaults source.Defaults, screens []source.Screen, raw []source.RawItem, hidden Overlay) Contribution {
	out := Contribution{SourceID: sourceID}

	for _, r := range raw {
		r.ClassName = orDefault(r.ClassName, defaults.ClassName)
		r.IntentAction = orDefault(r.IntentAction, defaults.IntentAction)
		r.IntentTargetPackage = orDefault(r.IntentTargetPackage, defaults.IntentTargetPackage)
		if row, ok := c.ConvertRaw(sourceID, r, hidden); ok {
			out.Rows = append(out.Rows, row)
		}
	}

	for _, s := range screens {
		if s.Locale != "" && !strings.EqualFold(s.Locale, c.locale) {
			continue
		}
		s.ClassName = orDefault(s.ClassName, defaults.ClassName)
		s.IntentAction = orDefault(s.IntentAction, defaults.IntentAction)
		s.IntentTargetPackage = orDefault(s.IntentTargetPackage, defaults.IntentTargetPackage)

		rows, edges := c.ConvertScreen(sourceID, s, hidden)
		out.Rows = append(out.Rows, rows...)
		out.Edges = append(out.Edges, edges...)
	}
	return out
}

// ConvertRaw builds the row of a flat item. Items in another locale and
// items with an empty title are skipped.
func (c *Converter) ConvertRaw(sourceID string, r source.RawItem, hidden Overlay) (store.IndexedRow, bool) {
	if !strings.EqualFold(r.Locale, c.locale) {
		return store.IndexedRow{}, false
	}

	return c.build(rowFields{
		sourceID:    sourceID,
		key:         r.Key,
		title:       r.Title,
		summaryOn:   r.SummaryOn,
		summaryOff:  r.SummaryOff,
		entries:     r.Entries,
		keywords:    r.Keywords,
		icon:        r.Icon,
		rank:        r.Rank,
		userID:      r.UserID,
		className:   r.ClassName,
		screenTitle: r.ScreenTitle,
		action: store.OpenAction{
			Action:        r.IntentAction,
			TargetPackage: r.IntentTargetPackage,
			TargetClass:   r.IntentTargetClass,
		},
		enabled: !hidden.Contains(sourceID, r.Key),
		payload: r.Payload(),
	})
}

// ConvertScreen builds the rows of a screen: one per child, plus the
// header unless a child already carries the header's title.
func (c *Converter) ConvertScreen(sourceID string, s source.Screen, hidden Overlay) ([]store.IndexedRow, []store.SiteMapEdge) {
	action := store.OpenAction{
		Action:        s.IntentAction,
		TargetPackage: s.IntentTargetPackage,
		TargetClass:   s.IntentTargetClass,
	}

	var (
		rows         []store.IndexedRow
		edges        []store.SiteMapEdge
		headerUnique = true
	)
	for _, it := range s.Children {
		if headerUnique && it.Title == s.Title {
			headerUnique = false
		}

		f := rowFields{
			sourceID:       sourceID,
			key:            it.Key,
			title:          it.Title,
			keywords:       it.Keywords,
			icon:           it.Icon,
			rank:           s.Rank,
			userID:         DefaultUserID,
			className:      s.ClassName,
			childClassName: it.Fragment,
			screenTitle:    s.Title,
			action:         action,
			enabled:        !hidden.Contains(sourceID, it.Key),
			payload:        it.Payload(),
		}

		switch it.Kind {
		case source.KindCheckbox:
			f.summaryOn, f.summaryOff = it.SummaryOn, it.SummaryOff
			if f.summaryOn == "" && f.summaryOff == "" {
				f.summaryOn = it.Summary
			}
		case source.KindList:
			f.summaryOn = orDefault(it.Summary, it.SummaryOn)
			f.entries = it.Entries
		default:
			f.summaryOn = orDefault(it.Summary, it.SummaryOn)
		}

		row, ok := c.build(f)
		if !ok {
			continue
		}
		rows = append(rows, row)

		if row.ClassName != "" && row.ChildClassName != "" {
			edges = append(edges, store.SiteMapEdge{
				ParentClass: row.ClassName,
				ParentTitle: row.ScreenTitle,
				ChildClass:  row.ChildClassName,
				ChildTitle:  row.Title,
			})
		}
	}

	if headerUnique {
		header, ok := c.build(rowFields{
			sourceID:    sourceID,
			key:         s.Key,
			title:       s.Title,
			summaryOn:   s.Summary,
			keywords:    s.Keywords,
			rank:        s.Rank,
			userID:      DefaultUserID,
			className:   s.ClassName,
			screenTitle: s.Title,
			action:      action,
			enabled:     !hidden.Contains(sourceID, s.Key),
		})
		if ok {
			rows = append(rows, header)
		}
	}
	return rows, edges
}

type rowFields struct {
	sourceID       string
	key            string
	title          string
	summaryOn      string
	summaryOff     string
	entries        []string
	keywords       string
	icon           string
	rank           int
	userID         int
	className      string
	childClassName string
	screenTitle    string
	action         store.OpenAction
	enabled        bool
	payload        store.Payload
}

func (c *Converter) build(f rowFields) (store.IndexedRow, bool) {
	title := normalize.Hyphens(f.title)
	if strings.TrimSpace(title) == "" {
		slog.Debug("row_dropped",
			slog.String("source_id", f.sourceID),
			slog.String("key", f.key),
			slog.String("reason", "empty title"))
		return store.IndexedRow{}, false
	}

	summaryOn := normalize.Hyphens(f.summaryOn)
	summaryOff := normalize.Hyphens(f.summaryOff)
	action := f.action
	action.Key = f.key

	return store.IndexedRow{
		DocID:                DocID(f.key, title, f.className, f.screenTitle, f.action.TargetClass),
		Locale:               c.locale,
		Rank:                 store.ClampRank(f.rank),
		Title:                title,
		TitleNormalized:      normalize.Normalize(f.title),
		SummaryOn:            summaryOn,
		SummaryOnNormalized:  normalize.Normalize(f.summaryOn),
		SummaryOff:           summaryOff,
		SummaryOffNormalized: normalize.Normalize(f.summaryOff),
		Entries:              normalize.Entries(f.entries),
		Keywords:             normalize.Keywords(f.keywords),
		ClassName:            f.className,
		ChildClassName:       f.childClassName,
		ScreenTitle:          f.screenTitle,
		IconRef:              f.icon,
		Action:               action,
		Enabled:              f.enabled,
		Key:                  f.key,
		UserID:               f.userID,
		SourceID:             f.sourceID,
		Payload:              f.payload,
	}, true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
