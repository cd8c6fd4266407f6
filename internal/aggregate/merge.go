package aggregate

import (
	"github.com/Aman-CERP/settingsearch/internal/search"
	"github.com/Aman-CERP/settingsearch/internal/store"
)

// Merge orders static results first, then walks the tiers TopRank through
// BottomRank and, within each tier, takes the dynamic lists in the order
// given. Each dynamic list is expected in ascending rank; whatever is
// left above the ceiling is appended in its original order.
func Merge(static []search.Result, dynamic ...[]search.Result) []search.Result {
	total := len(static)
	for _, list := range dynamic {
		total += len(list)
	}
	out := make([]search.Result, 0, total)
	out = append(out, static...)

	next := make([]int, len(dynamic))
	for tier := store.TopRank; tier <= store.BottomRank; tier++ {
		for i, list := range dynamic {
			for next[i] < len(list) && list[next[i]].Rank <= tier {
				out = append(out, list[next[i]])
				next[i]++
			}
		}
	}
	for i, list := range dynamic {
		out = append(out, list[next[i]:]...)
	}
	return out
}

// Append keeps static results in their given order and concatenates the
// dynamic lists after them. It is used when static results are ordered by
// relevance score rather than by rank.
func Append(static []search.Result, dynamic ...[]search.Result) []search.Result {
	out := append([]search.Result(nil), static...)
	for _, list := range dynamic {
		out = append(out, list...)
	}
	return out
}
