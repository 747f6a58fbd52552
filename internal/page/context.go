// Package page holds the per-request render state and the cached page
// record shared by the evaluator and the page handler.
package page

import (
	"net/http"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/document"
	"github.com/conneroisu/frontpage/internal/nonce"
	"github.com/conneroisu/frontpage/internal/placeholder"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// RenderContext is the state of one request. It is owned by the handler for
// the lifetime of the request and never shared.
type RenderContext struct {
	Request *http.Request
	Path    string
	TypeNum int
	Locale  document.Locale

	// Setup is the whole setup tree, PageSetup the PAGE object of the
	// requested type and Config the merged config of both.
	Setup     *tstree.Node
	PageSetup *tstree.Node
	Config    *tstree.Node

	// Data is the current record; stdWrap "field" reads from it.
	Data map[string]string
	// Registers are scratch values for "register:" lookups.
	Registers map[string]string

	IsGeneratePage       bool
	HasUncachedFragments bool
	Uncached             []Instruction
	Ext                  UncachedExt

	AdditionalHeaderData Fragments
	AdditionalFooterData Fragments

	Assets    *assets.Registry
	Collector *assets.AssetCollector
	Nonce     *nonce.Nonce

	Title        string
	Content      string
	AbsRefPrefix string
}

// NewRenderContext returns a context with fresh asset state.
func NewRenderContext(r *http.Request, path string, typeNum int) *RenderContext {
	return &RenderContext{
		Request:   r,
		Path:      path,
		TypeNum:   typeNum,
		Data:      make(map[string]string),
		Registers: make(map[string]string),
		Assets:    assets.NewRegistry(),
		Collector: assets.NewAssetCollector(),
	}
}

// AddUncached schedules a non-cacheable instruction and returns the marker
// that stands in for its output.
func (rc *RenderContext) AddUncached(inst Instruction) string {
	if inst.Key == "" {
		inst.Key = placeholder.NewID()
	}
	rc.Uncached = append(rc.Uncached, inst)
	if !inst.Permanent {
		rc.HasUncachedFragments = true
	}
	return placeholder.Marker(inst.Key)
}

// Instruction returns the scheduled instruction with key.
func (rc *RenderContext) Instruction(key string) (Instruction, bool) {
	for _, inst := range rc.Uncached {
		if inst.Key == key {
			return inst, true
		}
	}
	return Instruction{}, false
}

// NeedsUncachedPass reports whether any instruction must run before the
// response is written.
func (rc *RenderContext) NeedsUncachedPass() bool {
	return len(rc.Uncached) > 0
}

// Fragment is a keyed block of raw markup.
type Fragment struct {
	Key    string `json:"key"`
	Markup string `json:"markup"`
}

// Fragments is an ordered set of keyed markup blocks. Setting an existing key
// replaces its markup in place.
type Fragments []Fragment

// Set adds or replaces the block under key.
func (f *Fragments) Set(key, markup string) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Markup = markup
			return
		}
	}
	*f = append(*f, Fragment{Key: key, Markup: markup})
}

// Markup returns the blocks in order.
func (f Fragments) Markup() []string {
	out := make([]string, 0, len(f))
	for _, fr := range f {
		out = append(out, fr.Markup)
	}
	return out
}
