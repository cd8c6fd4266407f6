// Package index crawls the registered sources into the settings store and
// keeps the rows' enabled bits in line with each source's hidden keys.
package index

import "sort"

// Overlay maps a source id to the keys that source currently hides from
// search. A source with an entry, even an empty one, answered this pass;
// a source without an entry did not.
type Overlay map[string]map[string]struct{}

// Add records keys for sourceID, creating the entry even when keys is empty.
func (o Overlay) Add(sourceID string, keys []string) {
	set, ok := o[sourceID]
	if !ok {
		set = make(map[string]struct{}, len(keys))
		o[sourceID] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
}

// Known reports whether sourceID answered this pass.
func (o Overlay) Known(sourceID string) bool {
	_, ok := o[sourceID]
	return ok
}

// Contains reports whether sourceID hides key.
func (o Overlay) Contains(sourceID, key string) bool {
	_, ok := o[sourceID][key]
	return ok
}

// Keys returns the sorted hidden keys of sourceID.
func (o Overlay) Keys(sourceID string) []string {
	keys := make([]string, 0, len(o[sourceID]))
	for k := range o[sourceID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
