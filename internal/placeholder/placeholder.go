// Package placeholder handles the in-band markers that stand in for
// non-cacheable content inside otherwise cached markup.
//
// A marker has the form <!--INT_SCRIPT.<id>-->. The syntax is stored inside
// cached HTML and must not change.
package placeholder

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	prefix = "<!--INT_SCRIPT."
	suffix = "-->"
)

var markerPattern = regexp.MustCompile(`<!--INT_SCRIPT\.([a-z0-9]*)-->`)

// Marker returns the marker for id.
func Marker(id string) string {
	return prefix + id + suffix
}

// NewID returns a fresh 32 character lowercase hex id.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Contains reports whether text holds at least one marker.
func Contains(text string) bool {
	if !strings.Contains(text, prefix) {
		return false
	}
	return markerPattern.MatchString(text)
}

// IDs returns the ids of all markers in text, in order of appearance.
func IDs(text string) []string {
	matches := markerPattern.FindAllStringSubmatch(text, -1)
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// Strip removes every marker from text. The removed markers are returned
// concatenated in their original order. Stripping already clean text returns
// it unchanged with an empty extraction.
func Strip(text string) (clean, extracted string) {
	if !strings.Contains(text, prefix) {
		return text, ""
	}
	markers := markerPattern.FindAllString(text, -1)
	if len(markers) == 0 {
		return text, ""
	}
	return markerPattern.ReplaceAllLiteralString(text, ""), strings.Join(markers, "")
}

// Resolver returns the content for a marker id. ok is false for ids that are
// unknown to the caller.
type Resolver func(id string) (content string, ok bool)

// Resolve replaces each marker in text with the content returned by resolve.
// Markers with unknown ids are dropped.
func Resolve(text string, resolve Resolver) string {
	if !strings.Contains(text, prefix) {
		return text
	}
	return markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		id := m[len(prefix) : len(m)-len(suffix)]
		content, ok := resolve(id)
		if !ok {
			return ""
		}
		return content
	})
}

// Protect applies fn to the text between markers. The markers themselves are
// passed through untouched, so transformations such as minification cannot
// damage them.
func Protect(text string, fn func(string) string) string {
	locs := markerPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return fn(text)
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(fn(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(fn(text[last:]))
	return b.String()
}
