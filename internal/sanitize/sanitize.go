// Package sanitize resolves resource paths from the setup tree against the
// public directory, rejecting anything that would escape it.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound is returned when the resolved file does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden is returned for paths outside the public directory and
	// for external URLs that are not allowed.
	ErrForbidden = errors.New("resource path forbidden")
)

// Sanitizer validates resource paths below a public directory.
type Sanitizer struct {
	publicDir string
}

// New returns a sanitizer rooted at publicDir.
func New(publicDir string) *Sanitizer {
	return &Sanitizer{publicDir: publicDir}
}

// IsExternal reports whether p is an absolute http(s) or protocol-relative
// URL.
func IsExternal(p string) bool {
	lower := strings.ToLower(strings.TrimSpace(p))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// Sanitize returns the public-relative form of p. External URLs are returned
// unchanged when allowExternal is set. A query string is kept but ignored for
// the existence check.
func (s *Sanitizer) Sanitize(p string, allowExternal bool) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	if IsExternal(p) {
		if allowExternal {
			return p, nil
		}
		return "", fmt.Errorf("%w: external url %s", ErrForbidden, p)
	}
	if strings.HasPrefix(p, "EXT:") {
		return "", fmt.Errorf("%w: extension paths are not supported: %s", ErrForbidden, p)
	}
	if strings.Contains(p, "://") || strings.ContainsAny(p, "\x00\\") {
		return "", fmt.Errorf("%w: %s", ErrForbidden, p)
	}

	file, query, _ := strings.Cut(p, "?")
	for _, seg := range strings.Split(file, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: path traversal detected: %s", ErrForbidden, p)
		}
	}
	rel := strings.TrimPrefix(path.Clean("/"+file), "/")
	if rel == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	info, err := os.Stat(filepath.Join(s.publicDir, filepath.FromSlash(rel)))
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if query != "" {
		rel += "?" + query
	}
	return rel, nil
}

// Exists reports whether rel names a regular file below the public directory.
func (s *Sanitizer) Exists(rel string) bool {
	_, err := s.Sanitize(rel, false)
	return err == nil
}
