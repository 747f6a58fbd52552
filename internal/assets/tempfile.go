package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// TempFileWriter stores generated inline CSS and JS as files so that they can
// be cached by browsers. Files are named after their content and written once.
type TempFileWriter struct {
	publicDir string
	tempDir   string
}

// NewTempFileWriter writes below the public-relative tempDir of publicDir.
func NewTempFileWriter(publicDir, tempDir string) *TempFileWriter {
	return &TempFileWriter{
		publicDir: publicDir,
		tempDir:   strings.Trim(filepath.ToSlash(tempDir), "/"),
	}
}

// WriteCSS stores code and returns its public-relative path.
func (w *TempFileWriter) WriteCSS(code string) (string, error) {
	return w.write("css", "stylesheet_", ".css", code)
}

// WriteJS stores code and returns its public-relative path.
func (w *TempFileWriter) WriteJS(code string) (string, error) {
	return w.write("js", "javascript_", ".js", code)
}

func (w *TempFileWriter) write(dir, prefix, ext, code string) (string, error) {
	sum := sha256.Sum256([]byte(code))
	rel := path.Join(w.tempDir, dir, prefix+hex.EncodeToString(sum[:])[:10]+ext)
	target := filepath.Join(w.publicDir, filepath.FromSlash(rel))
	if _, err := os.Stat(target); err == nil {
		return rel, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return rel, nil
}
