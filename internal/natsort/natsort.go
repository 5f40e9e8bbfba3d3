// Package natsort orders strings the way a reader expects: locale-aware,
// with embedded digit runs compared as numbers ("Vol 2" before "Vol 10").
package natsort

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sorter compares strings in natural order. It wraps a collate.Collator,
// which is not safe for concurrent use; give each goroutine its own Sorter.
type Sorter struct {
	c *collate.Collator
}

// New returns a Sorter using the root locale with numeric collation.
func New() *Sorter {
	return &Sorter{c: collate.New(language.Und, collate.Numeric)}
}

// Compare returns -1, 0 or +1. Strings the collator considers equal are
// ordered bytewise so the result is a total order.
func (s *Sorter) Compare(a, b string) int {
	if r := s.c.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// Less reports whether a sorts before b.
func (s *Sorter) Less(a, b string) bool {
	return s.Compare(a, b) < 0
}

// Strings sorts a slice of strings in natural order.
func Strings(list []string) {
	s := New()
	sort.SliceStable(list, func(i, j int) bool { return s.Less(list[i], list[j]) })
}

// Compare is a convenience wrapper that allocates a fresh collator.
func Compare(a, b string) int {
	return New().Compare(a, b)
}
