package catalog

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	annotationRE = regexp.MustCompile(`\([^()]*\)`)
	spaceRE      = regexp.MustCompile(`\s+`)
)

// stripAnnotations removes parenthetical notes such as "(2020)" or
// "(digital)" and collapses the remaining whitespace.
func stripAnnotations(s string) string {
	s = annotationRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}

// DisplayName formats a file name for listing inside the directory dirName:
// the extension and parenthetical annotations are dropped, then a leading
// series name matching the directory is stripped.
//
//	DisplayName("Foo Vol 1 (2020).cbz", "Foo (2020)") == "Vol 1"
func DisplayName(fileName, dirName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	name := stripAnnotations(base)
	if name == "" {
		return strings.TrimSpace(base)
	}

	series := stripAnnotations(dirName)
	if series == "" || !strings.HasPrefix(name, series) {
		return name
	}

	rest := name[len(series):]
	if r, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		// "Foobar" is not in the series "Foo".
		return name
	}
	rest = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), "-–—:,."))
	if rest == "" {
		return name
	}
	return rest
}
