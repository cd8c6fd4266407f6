package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHyphens_ReplacesNonBreakingHyphen(t *testing.T) {
	assert.Equal(t, "Wi-Fi", Hyphens("Wi‑Fi"))
	assert.Equal(t, "Wi-Fi", Hyphens("Wi-Fi"))
	assert.Equal(t, "", Hyphens(""))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"non-breaking hyphen", "Wi‑Fi", "WiFi"},
		{"plain hyphen", "Wi-Fi calling", "WiFi calling"},
		{"diacritics", "Priorités", "Priorites"},
		{"decomposed input", "Priorite\u0301s", "Priorites"},
		{"whitespace collapsed", "  Data   usage ", "Data usage"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, in := range []string{"Wi‑Fi", "Priorités", "Apps & notifications", "  a -- b  "} {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), in)

		updated := Hyphens(in)
		assert.Equal(t, updated, Hyphens(updated), in)
	}
}

func TestFold_LowerCases(t *testing.T) {
	assert.Equal(t, "wifi", Fold("Wi‑Fi"))
	assert.Equal(t, "priorites", Fold("PRIORITÉS"))
}

func TestKeywords_FlattensCommaLists(t *testing.T) {
	assert.Equal(t, "wifi wi-fi network", Keywords("wifi, wi-fi,network"))
	assert.Equal(t, "single", Keywords("single"))
}

func TestEntries_JoinsWithSeparator(t *testing.T) {
	assert.Equal(t, "Small|Default|Large", Entries([]string{"Small", " Default ", "", "Large"}))
	assert.Equal(t, "", Entries(nil))
}
