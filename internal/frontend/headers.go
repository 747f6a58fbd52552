package frontend

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/conneroisu/frontpage/internal/page"
)

// staticHeaders computes the status and headers stored with a generated page.
func (h *Handler) staticHeaders(rc *page.RenderContext) (int, http.Header) {
	header := make(http.Header)
	status := http.StatusOK

	contentType := rc.Config.StringDefault("contentType", "text/html")
	charset := rc.Config.StringDefault("metaCharset", "utf-8")
	header.Set("Content-Type", contentType+"; charset="+strings.ToLower(charset))

	if !rc.Config.Bool("disableLanguageHeader") {
		if lang := rc.Locale.Name(); lang != "" {
			header.Set("Content-Language", lang)
		}
	}

	extra := rc.Config.Child("additionalHeaders")
	for _, k := range extra.NumericKeys() {
		e := extra.Child(k)
		name, value, ok := strings.Cut(e.String("header"), ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		value = strings.TrimSpace(value)
		if e.Has("replace") && !e.Bool("replace") {
			header.Add(name, value)
		} else {
			header.Set(name, value)
		}
		if code := e.Int("httpResponseCode", 0); code >= 100 && code <= 599 {
			status = code
		}
	}
	return status, header
}

// cacheHeaders adds client cache headers when config.sendCacheHeaders is set.
// Pages with non-cacheable fragments are never cached by clients.
func (h *Handler) cacheHeaders(rc *page.RenderContext, cached *page.CachedPage, header http.Header) {
	if !rc.Config.Bool("sendCacheHeaders") {
		return
	}
	if rc.HasUncachedFragments || cached.Expires.IsZero() {
		header.Set("Cache-Control", "private, no-store")
		return
	}
	now := h.now()
	maxAge := int(cached.Expires.Sub(now).Seconds())
	if maxAge <= 0 {
		header.Set("Cache-Control", "private, no-store")
		return
	}
	header.Set("Cache-Control", "max-age="+strconv.Itoa(maxAge))
	header.Set("Expires", cached.Expires.UTC().Format(http.TimeFormat))
	header.Set("Last-Modified", cached.CreatedAt.UTC().Format(http.TimeFormat))
	header.Set("Pragma", "public")
}
