package normalize

import (
	"strings"
	"unicode"
)

// NoMatch is returned by WordDifference when the query does not prefix any
// word of the name.
const NoMatch = -1

// WordDifference reports how well query matches name by word-start prefix.
// The query must equal the beginning of name or the beginning of one of its
// words (a word starts after a run of non letter/digit characters). On a
// match the result is the number of unmatched runes, len(name)-len(query),
// which callers use as a rank offset. Comparison ignores case.
func WordDifference(name, query string) int {
	if name == "" || query == "" {
		return NoMatch
	}
	app := []rune(strings.ToLower(name))
	q := []rune(strings.ToLower(query))
	if len(q) > len(app) {
		return NoMatch
	}

	i := 0
	for i < len(app) {
		j := 0
		for i+j < len(app) && q[j] == app[i+j] {
			j++
			if j == len(q) {
				return len(app) - len(q)
			}
		}

		// Skip the rest of the current word, then the separators.
		i += j
		for i < len(app) && isWordRune(app[i]) {
			i++
		}
		for i < len(app) && !isWordRune(app[i]) {
			i++
		}
	}
	return NoMatch
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

