// Package events lets integrators hook into page rendering. Listeners run
// synchronously in registration order; a listener error stops dispatch and is
// returned to the caller.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// HrefLang is one alternate-language link.
type HrefLang struct {
	Lang string
	URL  string
}

// ModifyHrefLangTags is dispatched once per generated page. Listeners edit
// Tags in place.
type ModifyHrefLangTags struct {
	Path string
	Tags []HrefLang
}

// Set replaces the URL for lang or appends a new entry.
func (e *ModifyHrefLangTags) Set(lang, url string) {
	for i := range e.Tags {
		if e.Tags[i].Lang == lang {
			e.Tags[i].URL = url
			return
		}
	}
	e.Tags = append(e.Tags, HrefLang{Lang: lang, URL: url})
}

// Remove drops the entry for lang.
func (e *ModifyHrefLangTags) Remove(lang string) {
	out := e.Tags[:0]
	for _, t := range e.Tags {
		if t.Lang != lang {
			out = append(out, t)
		}
	}
	e.Tags = out
}

// GeneratePublicURL is dispatched for every local resource written into
// markup. A listener that sets URL decides the result.
type GeneratePublicURL struct {
	Path         string
	AbsRefPrefix string
	URL          string
}

// HrefLangListener handles ModifyHrefLangTags.
type HrefLangListener func(ctx context.Context, e *ModifyHrefLangTags) error

// PublicURLListener handles GeneratePublicURL.
type PublicURLListener func(ctx context.Context, e *GeneratePublicURL) error

// Dispatcher holds the registered listeners. It is safe for concurrent use.
type Dispatcher struct {
	mu        sync.RWMutex
	hrefLang  []HrefLangListener
	publicURL []PublicURLListener
}

// NewDispatcher returns a dispatcher without listeners.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnModifyHrefLangTags registers l.
func (d *Dispatcher) OnModifyHrefLangTags(l HrefLangListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hrefLang = append(d.hrefLang, l)
}

// OnGeneratePublicURL registers l.
func (d *Dispatcher) OnGeneratePublicURL(l PublicURLListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publicURL = append(d.publicURL, l)
}

// DispatchHrefLang runs the href-lang listeners on e.
func (d *Dispatcher) DispatchHrefLang(ctx context.Context, e *ModifyHrefLangTags) error {
	d.mu.RLock()
	listeners := append([]HrefLangListener(nil), d.hrefLang...)
	d.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, e); err != nil {
			return fmt.Errorf("modify href-lang tags: %w", err)
		}
	}
	return nil
}

// PublicURL returns the URL for the public-relative path. Without a listener
// result the path is prefixed with absRefPrefix.
func (d *Dispatcher) PublicURL(ctx context.Context, path, absRefPrefix string) (string, error) {
	e := &GeneratePublicURL{Path: path, AbsRefPrefix: absRefPrefix}
	d.mu.RLock()
	listeners := append([]PublicURLListener(nil), d.publicURL...)
	d.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, e); err != nil {
			return "", fmt.Errorf("generate public url: %w", err)
		}
	}
	if e.URL != "" {
		return e.URL, nil
	}
	return DefaultPublicURL(path, absRefPrefix), nil
}

// DefaultPublicURL prefixes a relative path with absRefPrefix. Absolute paths
// and URLs are returned unchanged.
func DefaultPublicURL(path, absRefPrefix string) string {
	if absRefPrefix == "" || strings.HasPrefix(path, "/") || strings.Contains(path, "://") {
		return path
	}
	if !strings.HasSuffix(absRefPrefix, "/") {
		absRefPrefix += "/"
	}
	return absRefPrefix + path
}
