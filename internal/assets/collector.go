package assets

import (
	"fmt"
	"sync"
)

// CollectorAsset is a script or stylesheet registered by a content
// component, identified by a caller-chosen id.
type CollectorAsset struct {
	ID         string     `json:"id"`
	Source     string     `json:"source,omitempty"`
	Code       string     `json:"code,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
	Priority   bool       `json:"priority"`
}

// CollectorSnapshot is the serializable form of an AssetCollector.
type CollectorSnapshot struct {
	Version      int              `json:"version"`
	JavaScripts  []CollectorAsset `json:"javaScripts,omitempty"`
	InlineJS     []CollectorAsset `json:"inlineJs,omitempty"`
	StyleSheets  []CollectorAsset `json:"styleSheets,omitempty"`
	InlineStyles []CollectorAsset `json:"inlineStyles,omitempty"`
}

// AssetCollector gathers assets from content components. Re-registering an id
// replaces the earlier asset in place. Priority assets render in the head;
// other scripts render in the footer. Stylesheets always render in the head.
type AssetCollector struct {
	mu           sync.Mutex
	javaScripts  List[CollectorAsset]
	inlineJS     List[CollectorAsset]
	styleSheets  List[CollectorAsset]
	inlineStyles List[CollectorAsset]
}

// NewAssetCollector returns an empty collector.
func NewAssetCollector() *AssetCollector {
	return &AssetCollector{}
}

// AddJavaScript registers a script file.
func (c *AssetCollector) AddJavaScript(id, source string, attrs Attributes, priority bool) {
	c.put(&c.javaScripts, CollectorAsset{ID: id, Source: source, Attributes: attrs, Priority: priority})
}

// AddInlineJavaScript registers inline script code.
func (c *AssetCollector) AddInlineJavaScript(id, code string, attrs Attributes, priority bool) {
	c.put(&c.inlineJS, CollectorAsset{ID: id, Code: code, Attributes: attrs, Priority: priority})
}

// AddStyleSheet registers a stylesheet file.
func (c *AssetCollector) AddStyleSheet(id, source string, attrs Attributes, priority bool) {
	c.put(&c.styleSheets, CollectorAsset{ID: id, Source: source, Attributes: attrs, Priority: priority})
}

// AddInlineStyleSheet registers inline CSS.
func (c *AssetCollector) AddInlineStyleSheet(id, code string, attrs Attributes, priority bool) {
	c.put(&c.inlineStyles, CollectorAsset{ID: id, Code: code, Attributes: attrs, Priority: priority})
}

// Len returns the number of registered assets.
func (c *AssetCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.javaScripts.Len() + c.inlineJS.Len() + c.styleSheets.Len() + c.inlineStyles.Len()
}

func (c *AssetCollector) put(l *List[CollectorAsset], a CollectorAsset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.Has(a.ID) {
		l.Items[a.ID] = a
		return
	}
	l.Add(a.ID, a, false)
}

// Snapshot captures the collector state.
func (c *AssetCollector) Snapshot() CollectorSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CollectorSnapshot{
		Version:      SnapshotVersion,
		JavaScripts:  c.javaScripts.Values(),
		InlineJS:     c.inlineJS.Values(),
		StyleSheets:  c.styleSheets.Values(),
		InlineStyles: c.inlineStyles.Values(),
	}
}

// Restore replaces the collector state with s.
func (c *AssetCollector) Restore(s CollectorSnapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: collector %d", ErrSnapshotVersion, s.Version)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.javaScripts = listOf(s.JavaScripts)
	c.inlineJS = listOf(s.InlineJS)
	c.styleSheets = listOf(s.StyleSheets)
	c.inlineStyles = listOf(s.InlineStyles)
	return nil
}

func listOf(assets []CollectorAsset) List[CollectorAsset] {
	var l List[CollectorAsset]
	for _, a := range assets {
		l.Add(a.ID, a, false)
	}
	return l
}

// mergeInto adds the collected assets to state for rendering.
func (c *AssetCollector) mergeInto(state *State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.styleSheets.Values() {
		e := newCSSEntry(a.Source, CSSFileOptions{Attributes: a.Attributes, ForceTop: a.Priority})
		if media, ok := a.Attributes.Get("media"); ok {
			e.Media = media
		}
		state.CSSFiles.Add(a.Source, e, a.Priority)
	}
	for _, a := range c.inlineStyles.Values() {
		state.CSSInline.Add("collector:"+a.ID, InlineBlock{Name: a.ID, Code: a.Code, ForceTop: a.Priority}, a.Priority)
	}
	for _, a := range c.javaScripts.Values() {
		e := newJSEntry("", a.Source, JSFileOptions{Attributes: a.Attributes})
		if a.Priority {
			state.JSFiles.Add(a.Source, e, false)
		} else {
			state.JSFooterFiles.Add(a.Source, e, false)
		}
	}
	for _, a := range c.inlineJS.Values() {
		block := InlineBlock{Name: a.ID, Code: a.Code}
		if a.Priority {
			state.JSInline.Add("collector:"+a.ID, block, false)
		} else {
			state.JSFooterInline.Add("collector:"+a.ID, block, false)
		}
	}
}
