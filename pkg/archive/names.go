package archive

import (
	"path"
	"regexp"
	"strings"
)

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// Sanitize makes s usable as a single path segment: reserved characters become
// '_' and whitespace runs collapse to one space. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	s = invalidNameChars.ReplaceAllString(s, "_")
	return whitespaceRun.ReplaceAllString(s, " ")
}

// Stem returns the base name of name without its extension.
func Stem(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
