package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for unknown identifiers, for file operations on
// directories and when no thumbnail source exists.
var ErrNotFound = errors.New("entry not found")

// Index is the immutable result of a Build. Entries live in one flat arena
// in depth-first order with an id to position map for lookups. It is safe
// for concurrent readers.
type Index struct {
	entries []*Entry
	byID    map[string]int
	broken  int
}

// Stats summarises an Index.
type Stats struct {
	Directories int
	Files       int
	Broken      int
}

func newIndex(root *Entry, broken int) *Index {
	idx := &Index{byID: make(map[string]int), broken: broken}
	Walk(root, func(e *Entry) bool {
		idx.byID[e.ID] = len(idx.entries)
		idx.entries = append(idx.entries, e)
		return true
	})
	return idx
}

// Root returns the library root directory.
func (x *Index) Root() *Entry {
	return x.entries[0]
}

// Lookup returns the entry with the given id.
func (x *Index) Lookup(id string) (*Entry, error) {
	i, ok := x.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return x.entries[i], nil
}

// Children returns the sorted children of a directory.
func (x *Index) Children(id string) ([]*Entry, error) {
	e, err := x.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !e.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, id)
	}
	return e.Children, nil
}

// File returns the file entry with the given id.
func (x *Index) File(id string) (*Entry, error) {
	e, err := x.Lookup(id)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a file", ErrNotFound, id)
	}
	return e, nil
}

// Directory returns the directory entry with the given id.
func (x *Index) Directory(id string) (*Entry, error) {
	e, err := x.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !e.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, id)
	}
	return e, nil
}

// Len is the number of entries, root included.
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns every entry in depth-first order. The slice must not be
// modified.
func (x *Index) Entries() []*Entry {
	return x.entries
}

// Stats counts the entries by kind. Broken counts every file that failed
// to initialize during the build, listed or not.
func (x *Index) Stats() Stats {
	s := Stats{Broken: x.broken}
	for _, e := range x.entries {
		if e.IsDir() {
			s.Directories++
		} else {
			s.Files++
		}
	}
	return s
}
