// Package pagecache stores generated pages between requests.
package pagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/conneroisu/frontpage/internal/page"
)

// ErrMiss is returned by Get when no usable record exists for a key.
var ErrMiss = errors.New("page cache miss")

// Store is a page cache backend.
type Store interface {
	Get(ctx context.Context, key string) (*page.CachedPage, error)
	Set(ctx context.Context, key string, p *page.CachedPage, ttl time.Duration) error
	Flush(ctx context.Context) error
}

// Key identifies a page by host, path, type number and locale.
func Key(host, path string, typeNum int, locale string) string {
	h := sha256.New()
	for _, part := range []string{host, path, strconv.Itoa(typeNum), locale} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
