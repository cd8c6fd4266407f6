// Package normalize holds the text folding shared by the indexer and the
// query path. Stored values and query text must go through the same
// functions or prefix matching silently stops working.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	// NonBreakingHyphen is U+2011, used by translators in titles like "Wi‑Fi".
	NonBreakingHyphen = "‑"
	// Hyphen is the plain ASCII hyphen.
	Hyphen = "-"
	// EntriesSeparator joins list preference entries in one column.
	EntriesSeparator = "|"
)

var listDelimiters = regexp.MustCompile(`[,]\s*`)

// Hyphens replaces non-breaking hyphens with plain ones. The result is the
// "updated" value that is stored for display.
func Hyphens(s string) string {
	return strings.ReplaceAll(s, NonBreakingHyphen, Hyphen)
}

// Normalize produces the value used for matching: hyphens removed,
// diacritics stripped, whitespace collapsed. Case is preserved; the store
// compares case-insensitively.
func Normalize(s string) string {
	s = strings.ReplaceAll(Hyphens(s), Hyphen, "")
	return strings.Join(strings.Fields(stripMarks(s)), " ")
}

// Fold is Normalize plus lower-casing, applied to query text.
func Fold(s string) string {
	return strings.ToLower(Normalize(s))
}

// Keywords flattens a comma separated keyword list into space separated words.
func Keywords(s string) string {
	return listDelimiters.ReplaceAllString(s, " ")
}

// Entries joins list entries with EntriesSeparator, skipping blanks.
func Entries(entries []string) string {
	kept := make([]string, 0, len(entries))
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			kept = append(kept, e)
		}
	}
	return strings.Join(kept, EntriesSeparator)
}

func stripMarks(s string) string {
	decomposed := norm.NFD.String(s)
	var sb strings.Builder
	sb.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
