package assets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conneroisu/frontpage/internal/tstree"
)

var (
	// ErrFinalized is returned when a registry is rendered a second time.
	ErrFinalized = errors.New("asset registry already finalized")
	// ErrInvalidMetaKind is returned for meta attribute kinds other than
	// name, property and http-equiv.
	ErrInvalidMetaKind = errors.New("invalid meta tag attribute kind")
)

// DefaultTitleTag wraps the page title; "|" is replaced by the title.
const DefaultTitleTag = "<title>|</title>"

// Registry accumulates the renderable assets of one page. It is owned by a
// single request and is not safe for concurrent use.
type Registry struct {
	state     State
	finalized bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Reset clears all state.
func (r *Registry) Reset() {
	r.state = State{
		Document: Document{
			HeadTag:  "<head>",
			CharSet:  "utf-8",
			TitleTag: DefaultTitleTag,
		},
	}
	r.finalized = false
}

// State returns a copy of the accumulated state.
func (r *Registry) State() State {
	return r.state.Clone()
}

// CSSFileOptions are the optional parameters of a stylesheet registration.
type CSSFileOptions struct {
	Relation          string
	Media             string
	Title             string
	Compress          bool
	ForceTop          bool
	Wrap              string
	ExcludeFromConcat bool
	SplitChar         string
	Inline            bool
	Attributes        Attributes
}

func newCSSEntry(source string, o CSSFileOptions) CSSEntry {
	e := CSSEntry{
		Source:            source,
		Relation:          o.Relation,
		Media:             o.Media,
		Title:             o.Title,
		Compress:          o.Compress,
		ForceTop:          o.ForceTop,
		Wrap:              o.Wrap,
		ExcludeFromConcat: o.ExcludeFromConcat,
		SplitChar:         o.SplitChar,
		Inline:            o.Inline,
		ExtraAttributes:   o.Attributes,
	}
	if e.Relation == "" {
		e.Relation = "stylesheet"
	}
	if e.Media == "" {
		e.Media = "all"
	}
	if e.SplitChar == "" {
		e.SplitChar = "|"
	}
	return e
}

// AddCSSFile registers a stylesheet. The first registration of a source wins.
func (r *Registry) AddCSSFile(source string, o CSSFileOptions) {
	r.state.CSSFiles.Add(source, newCSSEntry(source, o), o.ForceTop)
}

// AddCSSLibrary registers a stylesheet library. Libraries render before files.
func (r *Registry) AddCSSLibrary(source string, o CSSFileOptions) {
	r.state.CSSLibs.Add(source, newCSSEntry(source, o), o.ForceTop)
}

// AddCSSInlineBlock registers inline CSS under name. Empty blocks are ignored.
func (r *Registry) AddCSSInlineBlock(name, code string, compress, forceTop bool) {
	if code == "" {
		return
	}
	r.state.CSSInline.Add(name, InlineBlock{Name: name, Code: code, Compress: compress, ForceTop: forceTop}, forceTop)
}

// JSFileOptions are the optional parameters of a script registration.
type JSFileOptions struct {
	Type              string
	Compress          bool
	ForceTop          bool
	Wrap              string
	ExcludeFromConcat bool
	SplitChar         string
	Async             bool
	Defer             bool
	CrossOrigin       string
	Integrity         string
	Nomodule          bool
	ModuleType        string
	Attributes        Attributes
}

func newJSEntry(name, source string, o JSFileOptions) JSEntry {
	e := JSEntry{
		Name:              name,
		Source:            source,
		Type:              o.Type,
		Compress:          o.Compress,
		ForceTop:          o.ForceTop,
		Wrap:              o.Wrap,
		ExcludeFromConcat: o.ExcludeFromConcat,
		SplitChar:         o.SplitChar,
		Async:             o.Async,
		Defer:             o.Defer,
		CrossOrigin:       o.CrossOrigin,
		Integrity:         o.Integrity,
		Nomodule:          o.Nomodule,
		ModuleType:        o.ModuleType,
		ExtraAttributes:   o.Attributes,
	}
	if e.SplitChar == "" {
		e.SplitChar = "|"
	}
	return e
}

// AddJSLibrary registers a head script library under name.
func (r *Registry) AddJSLibrary(name, source string, o JSFileOptions) {
	r.state.JSLibs.Add(name, newJSEntry(name, source, o), o.ForceTop)
}

// AddJSFooterLibrary registers a footer script library under name.
func (r *Registry) AddJSFooterLibrary(name, source string, o JSFileOptions) {
	r.state.JSFooterLibs.Add(name, newJSEntry(name, source, o), o.ForceTop)
}

// AddJSFile registers a head script file.
func (r *Registry) AddJSFile(source string, o JSFileOptions) {
	r.state.JSFiles.Add(source, newJSEntry("", source, o), o.ForceTop)
}

// AddJSFooterFile registers a footer script file.
func (r *Registry) AddJSFooterFile(source string, o JSFileOptions) {
	r.state.JSFooterFiles.Add(source, newJSEntry("", source, o), o.ForceTop)
}

// AddJSInlineCode registers inline head JS under name.
func (r *Registry) AddJSInlineCode(name, code string, compress, forceTop bool) {
	if code == "" {
		return
	}
	r.state.JSInline.Add(name, InlineBlock{Name: name, Code: code, Compress: compress, ForceTop: forceTop}, forceTop)
}

// AddJSFooterInlineCode registers inline footer JS under name.
func (r *Registry) AddJSFooterInlineCode(name, code string, compress, forceTop bool) {
	if code == "" {
		return
	}
	r.state.JSFooterInline.Add(name, InlineBlock{Name: name, Code: code, Compress: compress, ForceTop: forceTop}, forceTop)
}

// AddHeaderData appends raw head markup. Identical blocks are added once.
func (r *Registry) AddHeaderData(data string) {
	if data == "" || contains(r.state.HeaderData, data) {
		return
	}
	r.state.HeaderData = append(r.state.HeaderData, data)
}

// AddFooterData appends raw markup before </body>. Identical blocks are added
// once.
func (r *Registry) AddFooterData(data string) {
	if data == "" || contains(r.state.FooterData, data) {
		return
	}
	r.state.FooterData = append(r.state.FooterData, data)
}

// SetMetaTag registers a meta tag. With replace, earlier tags for the same
// kind and name are dropped and the new one takes the position of the first;
// without it the tag is added next to the existing ones.
func (r *Registry) SetMetaTag(kind, name, content string, replace bool) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	name = strings.ToLower(strings.TrimSpace(name))
	switch kind {
	case MetaName, MetaProperty, MetaHTTPEquiv:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMetaKind, kind)
	}
	tag := MetaTag{Kind: kind, Name: name, Content: content}
	if !replace {
		r.state.MetaTags = append(r.state.MetaTags, tag)
		return nil
	}
	out := r.state.MetaTags[:0:0]
	placed := false
	for _, existing := range r.state.MetaTags {
		if existing.Kind == kind && existing.Name == name {
			if !placed {
				out = append(out, tag)
				placed = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !placed {
		out = append(out, tag)
	}
	r.state.MetaTags = out
	return nil
}

// MetaTags returns the registered meta tags in render order.
func (r *Registry) MetaTags() []MetaTag {
	return append([]MetaTag(nil), r.state.MetaTags...)
}

// AddInlineSettings merges a settings tree under namespace. The settings are
// exposed to scripts as JSON.
func (r *Registry) AddInlineSettings(namespace string, settings *tstree.Node) {
	if settings == nil {
		return
	}
	if r.state.InlineSettings == nil {
		r.state.InlineSettings = make(map[string]any)
	}
	plain := settings.ToPlain()
	if existing, ok := r.state.InlineSettings[namespace].(map[string]any); ok {
		if incoming, ok := plain.(map[string]any); ok {
			merged := make(map[string]any, len(existing)+len(incoming))
			for k, v := range existing {
				merged[k] = v
			}
			for k, v := range incoming {
				merged[k] = v
			}
			plain = merged
		}
	}
	r.state.InlineSettings[namespace] = plain
}

// AddInlineLanguageLabels registers translated labels for scripts.
func (r *Registry) AddInlineLanguageLabels(labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	if r.state.InlineLabels == nil {
		r.state.InlineLabels = make(map[string]string, len(labels))
	}
	for k, v := range labels {
		r.state.InlineLabels[k] = v
	}
}

// EnableCompressCSS turns on stylesheet compression.
func (r *Registry) EnableCompressCSS() { r.state.Flags.CompressCSS = true }

// EnableCompressJS turns on script compression.
func (r *Registry) EnableCompressJS() { r.state.Flags.CompressJS = true }

// EnableConcatenateCSS turns on stylesheet concatenation.
func (r *Registry) EnableConcatenateCSS() { r.state.Flags.ConcatenateCSS = true }

// EnableConcatenateJS turns on script concatenation.
func (r *Registry) EnableConcatenateJS() { r.state.Flags.ConcatenateJS = true }

// EnableMoveJSFromHeaderToFooter renders head scripts in the footer.
func (r *Registry) EnableMoveJSFromHeaderToFooter() { r.state.Flags.MoveJSFromHeaderToFooter = true }

// Flags returns the processing flags.
func (r *Registry) Flags() Flags { return r.state.Flags }

// SetXMLPrologAndDocType sets the text emitted before <html>.
func (r *Registry) SetXMLPrologAndDocType(v string) { r.state.Document.XMLPrologAndDocType = v }

// SetHTMLTag sets the opening <html> tag.
func (r *Registry) SetHTMLTag(v string) { r.state.Document.HTMLTag = v }

// SetHeadTag sets the opening <head> tag.
func (r *Registry) SetHeadTag(v string) { r.state.Document.HeadTag = v }

// SetCharSet sets the document character set.
func (r *Registry) SetCharSet(v string) { r.state.Document.CharSet = v }

// SetFavIcon sets the favicon URL and its mime type.
func (r *Registry) SetFavIcon(href, mimeType string) {
	r.state.Document.FavIcon = href
	r.state.Document.IconMimeType = mimeType
}

// SetBaseURL sets the <base> href.
func (r *Registry) SetBaseURL(v string) { r.state.Document.BaseURL = v }

// SetTitle sets the page title.
func (r *Registry) SetTitle(v string) { r.state.Document.Title = v }

// Title returns the page title.
func (r *Registry) Title() string { return r.state.Document.Title }

// SetTitleTag sets the title wrap; "|" marks the title position.
func (r *Registry) SetTitleTag(v string) { r.state.Document.TitleTag = v }

// AddInlineComment adds a comment rendered at the top of <head>.
func (r *Registry) AddInlineComment(v string) {
	if v == "" || contains(r.state.Document.InlineComments, v) {
		return
	}
	r.state.Document.InlineComments = append(r.state.Document.InlineComments, v)
}

// SetXHTML switches self-closing tags to XHTML syntax.
func (r *Registry) SetXHTML(v bool) { r.state.Document.XHTML = v }

// AddBodyContent appends markup to the body.
func (r *Registry) AddBodyContent(v string) { r.state.Document.BodyContent += v }

// BodyContent returns the accumulated body markup.
func (r *Registry) BodyContent() string { return r.state.Document.BodyContent }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
