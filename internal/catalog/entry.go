// Package catalog builds the browsable tree of directories and comic files
// under a library root and serves identifier lookups over it.
package catalog

import (
	"fmt"
	"time"

	"github.com/huggablesquare/deputy/internal/archive"
)

// RootID is the reserved identifier of the library root.
const RootID = "index"

// Kind distinguishes the two entry variants.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Entry is a directory or file in the catalog. Entries are created once by
// the Builder and never modified afterwards. An entry refers to its parent
// only by ID.
type Entry struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
	Kind      Kind      `json:"kind"`

	// ImageType is the MIME type of the entry's thumbnail: page 0 for a file,
	// page 0 of the representative file for a directory.
	ImageType string `json:"image_type,omitempty"`

	// Directory fields.
	Children  []*Entry `json:"children,omitempty"`
	FileCount int      `json:"file_count,omitempty"`

	// File fields.
	Format    archive.Format `json:"format,omitempty"`
	Size      int64          `json:"size,omitempty"`
	PageCount int            `json:"page_count,omitempty"`
	Broken    bool           `json:"broken,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Archive returns the adapter for a file entry.
func (e *Entry) Archive(opts ...archive.Option) (archive.Archive, error) {
	if e.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, e.ID)
	}
	return archive.Open(e.Path, e.Format, opts...)
}
