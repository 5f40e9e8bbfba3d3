package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// IDScheme selects how entry identifiers are derived.
type IDScheme int

const (
	// IDByPath hashes the entry's path relative to the library root. IDs
	// survive inode reuse and moving the whole library.
	IDByPath IDScheme = iota
	// IDByInode combines inode number and birth time, so replacing a file in
	// place yields a new ID. Falls back to IDByPath where birth time is not
	// available.
	IDByInode
)

// ParseIDScheme maps a config value to an IDScheme.
func ParseIDScheme(s string) (IDScheme, error) {
	switch strings.ToLower(s) {
	case "", "path":
		return IDByPath, nil
	case "inode":
		return IDByInode, nil
	default:
		return IDByPath, fmt.Errorf("unknown id scheme %q", s)
	}
}

func (s IDScheme) String() string {
	if s == IDByInode {
		return "inode"
	}
	return "path"
}

// PathID returns a stable ID for a slash-separated path relative to the
// library root.
func PathID(rel string) string {
	h := sha256.Sum256([]byte(rel))
	return hex.EncodeToString(h[:8])
}

// relPath normalises p relative to root with forward slashes.
func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		rel = p
	}
	return filepath.ToSlash(filepath.Clean(rel))
}
