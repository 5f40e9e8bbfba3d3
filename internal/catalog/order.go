package catalog

import (
	"sort"
	"strings"

	"github.com/huggablesquare/deputy/internal/natsort"
)

const volumePrefix = "Vol"

// SortEntries orders siblings: directories before files, then names starting
// with "Vol" before the rest, then natural order on the name. Paths break
// any remaining tie so the order never depends on input order.
func SortEntries(entries []*Entry) {
	s := natsort.New()
	sort.SliceStable(entries, func(i, j int) bool {
		return compareEntries(s, entries[i], entries[j]) < 0
	})
}

func compareEntries(s *natsort.Sorter, a, b *Entry) int {
	if a.IsDir() != b.IsDir() {
		if a.IsDir() {
			return -1
		}
		return 1
	}

	av := strings.HasPrefix(a.Name, volumePrefix)
	bv := strings.HasPrefix(b.Name, volumePrefix)
	if av != bv {
		if av {
			return -1
		}
		return 1
	}

	if c := s.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.Path, b.Path)
}
