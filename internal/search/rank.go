package search

import (
	"unicode/utf8"

	"github.com/Aman-CERP/settingsearch/internal/store"
)

// RefineRank adjusts the base tier of a hit. Priority keys that matched in
// the best tier move to TopRank; otherwise long titles drop one step.
func RefineRank(title string, baseRank int, key string) int {
	if _, ok := PriorityKeys[key]; ok && baseRank < TierTitleWord {
		return store.TopRank
	}
	if utf8.RuneCountInString(title) > LongTitleLength {
		return baseRank + 1
	}
	return baseRank
}
