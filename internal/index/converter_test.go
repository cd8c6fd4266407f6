package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/settingsearch/internal/normalize"
	"github.com/Aman-CERP/settingsearch/internal/source"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

func networkScreen() source.Screen {
	return source.Screen{
		Key:                 "network_dashboard",
		Title:               "Network & internet",
		Summary:             "Wi‑Fi, mobile, data usage",
		Rank:                2,
		ClassName:           "NetworkDashboard",
		IntentTargetPackage: "com.example.settings",
		Children: []source.Item{
			{Key: "main_toggle_wifi", Kind: source.KindCheckbox, Title: "Wi‑Fi", SummaryOn: "On", SummaryOff: "Off", Fragment: "WifiSettings"},
			{Key: "airplane", Kind: source.KindCheckbox, Title: "Airplane mode", Summary: "Turn off radios"},
			{Key: "data_saver", Kind: source.KindList, Title: "Data Saver", Summary: "Restrict", Entries: []string{"Off", "On"}},
			{Key: "nameless", Title: ""},
		},
	}
}

func rowByKey(t *testing.T, rows []store.IndexedRow, key string) store.IndexedRow {
	t.Helper()
	for _, r := range rows {
		if r.Key == key {
			return r
		}
	}
	t.Fatalf("no row with key %q", key)
	return store.IndexedRow{}
}

func TestConverter_ConvertScreen_ChildrenAndUniqueHeader(t *testing.T) {
	// Given: a screen whose title matches no child
	conv := NewConverter("en_US")
	hidden := make(Overlay)
	hidden.Add("settings", []string{"airplane"})

	// When: converting
	rows, edges := conv.ConvertScreen("settings", networkScreen(), hidden)

	// Then: three children plus the header; the empty title is dropped
	require.Len(t, rows, 4)
	header := rowByKey(t, rows, "network_dashboard")
	assert.Equal(t, "Wi-Fi, mobile, data usage", header.SummaryOn)
	assert.Equal(t, "WiFi, mobile, data usage", header.SummaryOnNormalized)

	wifi := rowByKey(t, rows, "main_toggle_wifi")
	assert.Equal(t, "Wi-Fi", wifi.Title)
	assert.Equal(t, "WiFi", wifi.TitleNormalized)
	assert.Equal(t, "On", wifi.SummaryOn)
	assert.Equal(t, "Off", wifi.SummaryOff)
	assert.Equal(t, "Network & internet", wifi.ScreenTitle)
	assert.Equal(t, "NetworkDashboard", wifi.ClassName)
	assert.Equal(t, "WifiSettings", wifi.ChildClassName)
	assert.Equal(t, 2, wifi.Rank)
	assert.Equal(t, DefaultUserID, wifi.UserID)
	assert.Equal(t, "settings", wifi.SourceID)
	assert.Equal(t, "en_US", wifi.Locale)
	assert.True(t, wifi.Enabled)

	// And: a checkbox without on/off summaries falls back to the summary
	airplane := rowByKey(t, rows, "airplane")
	assert.Equal(t, "Turn off radios", airplane.SummaryOn)
	assert.Empty(t, airplane.SummaryOff)
	assert.False(t, airplane.Enabled)

	// And: list entries are indexed
	assert.Equal(t, "Off|On", rowByKey(t, rows, "data_saver").Entries)

	// And: the child screen link is recorded
	assert.Equal(t, []store.SiteMapEdge{{
		ParentClass: "NetworkDashboard", ParentTitle: "Network & internet",
		ChildClass: "WifiSettings", ChildTitle: "Wi-Fi",
	}}, edges)
}

func TestConverter_ConvertScreen_HeaderDuplicatedByChild(t *testing.T) {
	conv := NewConverter("en_US")
	screen := source.Screen{
		Key:   "bt_screen",
		Title: "Bluetooth",
		Children: []source.Item{
			{Key: "bt_toggle", Title: "Bluetooth"},
			{Key: "bt_name", Title: "Device name"},
		},
	}

	rows, _ := conv.ConvertScreen("settings", screen, make(Overlay))

	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.NotEqual(t, "bt_screen", r.Key)
	}
}

func TestConverter_ConvertRaw_LocaleFilter(t *testing.T) {
	conv := NewConverter("en_US")
	hidden := make(Overlay)

	_, ok := conv.ConvertRaw("s", source.RawItem{Locale: "EN_us", Title: "Sound"}, hidden)
	assert.True(t, ok)

	_, ok = conv.ConvertRaw("s", source.RawItem{Locale: "fr_FR", Title: "Son"}, hidden)
	assert.False(t, ok)

	_, ok = conv.ConvertRaw("s", source.RawItem{Locale: "en_US", Title: "  "}, hidden)
	assert.False(t, ok)
}

func TestConverter_ConvertRaw_FieldsAndRankClamp(t *testing.T) {
	conv := NewConverter("en_US")
	hidden := make(Overlay)
	hidden.Add("s", []string{"hidden_key"})
	raw := source.RawItem{
		Locale: "en_US", Key: "hidden_key", Title: "Storage",
		Keywords: "disk, space,memory", Entries: []string{"Internal", "SD"},
		Rank: 14, UserID: 10, ScreenTitle: "Device",
		IntentAction: "OPEN_STORAGE", IntentTargetClass: "StorageActivity",
		Switch: &store.InlineSwitchPayload{SettingKey: "smart_storage"},
	}

	row, ok := conv.ConvertRaw("s", raw, hidden)

	require.True(t, ok)
	assert.Equal(t, "disk space memory", row.Keywords)
	assert.Equal(t, "Internal|SD", row.Entries)
	assert.Equal(t, store.MaxRank, row.Rank)
	assert.Equal(t, 10, row.UserID)
	assert.False(t, row.Enabled)
	assert.Equal(t, store.OpenAction{Action: "OPEN_STORAGE", TargetClass: "StorageActivity", Key: "hidden_key"}, row.Action)
	assert.Equal(t, store.InlineSwitchPayload{SettingKey: "smart_storage"}, row.Payload)
}

func TestConverter_Convert_ProviderDefaultsFillBlanks(t *testing.T) {
	// Given: provider defaults and nested content that sets some fields
	conv := NewConverter("en_US")
	defaults := source.Defaults{ClassName: "ProviderClass", IntentAction: "PROVIDER_ACTION", IntentTargetPackage: "provider.pkg"}
	screens := []source.Screen{
		{Title: "Nested", Children: []source.Item{{Key: "a", Title: "Alpha"}}},
		{Title: "Own class", ClassName: "OwnClass", Children: []source.Item{{Key: "b", Title: "Beta"}}},
		{Title: "Elsewhere", Locale: "de_DE", Children: []source.Item{{Key: "c", Title: "Gamma"}}},
	}
	raw := []source.RawItem{{Locale: "en_US", Key: "r", Title: "Raw", IntentAction: "RAW_ACTION"}}

	// When: converting as a provider
	c := conv.Convert("provider", defaults, screens, raw, make(Overlay))

	// Then: blanks are inherited and explicit values win
	assert.Equal(t, "provider", c.SourceID)
	a := rowByKey(t, c.Rows, "a")
	assert.Equal(t, "ProviderClass", a.ClassName)
	assert.Equal(t, "PROVIDER_ACTION", a.Action.Action)
	assert.Equal(t, "provider.pkg", a.Action.TargetPackage)
	assert.Equal(t, "OwnClass", rowByKey(t, c.Rows, "b").ClassName)

	r := rowByKey(t, c.Rows, "r")
	assert.Equal(t, "RAW_ACTION", r.Action.Action)
	assert.Equal(t, "ProviderClass", r.ClassName)

	// And: screens for another locale are skipped
	for _, row := range c.Rows {
		assert.NotEqual(t, "c", row.Key)
	}
}

func TestDocID_StableByKey(t *testing.T) {
	a := DocID("main_toggle_wifi", "Wi-Fi", "Wifi", "Network", "")
	b := DocID("main_toggle_wifi", "Wireless", "Other", "Other screen", "Target")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, DocID("main_toggle_bluetooth", "Wi-Fi", "Wifi", "Network", ""))
}

func TestDocID_WithoutKeyIsPureFunctionOfTuple(t *testing.T) {
	a := DocID("", "Wi-Fi", "Wifi", "Network", "T")

	assert.Equal(t, a, DocID("", "Wi-Fi", "Wifi", "Network", "T"))
	assert.NotEqual(t, a, DocID("", "Wi-Fi", "Wifi", "Network", "U"))
	assert.NotEqual(t, a, DocID("", "Wi-Fi", "Wifi", "Networks", "T"))
	assert.NotEqual(t, DocID("", "ab", "c", "", ""), DocID("", "a", "bc", "", ""))
}

func TestConverter_DocIDIgnoresSummaryChanges(t *testing.T) {
	conv := NewConverter("en_US")
	before, _ := conv.ConvertRaw("s", source.RawItem{Locale: "en_US", Key: "k", Title: "T", SummaryOn: "one"}, make(Overlay))
	after, _ := conv.ConvertRaw("s", source.RawItem{Locale: "en_US", Key: "k", Title: "T2", SummaryOn: "two"}, make(Overlay))

	assert.Equal(t, before.DocID, after.DocID)
	assert.Equal(t, normalize.Normalize("T2"), after.TitleNormalized)
}

func TestOverlay(t *testing.T) {
	o := make(Overlay)
	o.Add("a", nil)
	o.Add("b", []string{"k2", "k1"})

	assert.True(t, o.Known("a"))
	assert.False(t, o.Contains("a", "k1"))
	assert.True(t, o.Contains("b", "k1"))
	assert.False(t, o.Known("c"))
	assert.False(t, o.Contains("c", "k1"))
	assert.Equal(t, []string{"k1", "k2"}, o.Keys("b"))
}
