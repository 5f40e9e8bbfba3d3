package catalog

// Walk visits e and its descendants depth-first in sibling order. Returning
// false from fn skips the entry's children.
func Walk(e *Entry, fn func(*Entry) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range e.Children {
		Walk(c, fn)
	}
}

// CountFiles counts the usable files below e, recursively.
func CountFiles(e *Entry) int {
	n := 0
	Walk(e, func(c *Entry) bool {
		if !c.IsDir() && !c.Broken {
			n++
		}
		return true
	})
	return n
}
