package catalog

import "fmt"

// ResolveThumbnail returns the file whose first page represents e. A file
// represents itself. A directory prefers its own first usable file and
// otherwise descends into its subdirectories in sort order.
func ResolveThumbnail(e *Entry) (*Entry, error) {
	if !e.IsDir() {
		if e.Broken {
			return nil, fmt.Errorf("%w: %s is broken", ErrNotFound, e.ID)
		}
		return e, nil
	}

	for _, c := range e.Children {
		if !c.IsDir() && !c.Broken {
			return c, nil
		}
	}
	for _, c := range e.Children {
		if !c.IsDir() {
			continue
		}
		if f, err := ResolveThumbnail(c); err == nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: no thumbnail source under %s", ErrNotFound, e.ID)
}
