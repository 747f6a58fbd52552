package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/frontpage/internal/nonce"
)

// Section names of the page template, in output order.
const (
	SectionXMLPrologDocType = "XMLPROLOG_DOCTYPE"
	SectionHTMLTag          = "HTMLTAG"
	SectionHeadTag          = "HEADTAG"
	SectionMetaCharset      = "METACHARSET"
	SectionInlineComment    = "INLINECOMMENT"
	SectionBaseURL          = "BASEURL"
	SectionShortcut         = "SHORTCUT"
	SectionTitle            = "TITLE"
	SectionMeta             = "META"
	SectionCSSLibs          = "CSS_LIBS"
	SectionCSSInclude       = "CSS_INCLUDE"
	SectionCSSInline        = "CSS_INLINE"
	SectionJSLibs           = "JS_LIBS"
	SectionJSInclude        = "JS_INCLUDE"
	SectionJSInline         = "JS_INLINE"
	SectionHeaderData       = "HEADERDATA"
	SectionBody             = "BODY"
	SectionJSLibsFooter     = "JS_LIBS_FOOTER"
	SectionJSIncludeFooter  = "JS_INCLUDE_FOOTER"
	SectionJSInlineFooter   = "JS_INLINE_FOOTER"
	SectionFooterData       = "FOOTERDATA"
)

// template is the page layout. Entries that are not section names are
// emitted literally.
var template = []string{
	SectionXMLPrologDocType,
	SectionHTMLTag,
	SectionHeadTag,
	SectionMetaCharset,
	SectionInlineComment,
	SectionBaseURL,
	SectionShortcut,
	SectionTitle,
	SectionMeta,
	SectionCSSLibs,
	SectionCSSInclude,
	SectionCSSInline,
	SectionJSLibs,
	SectionJSInclude,
	SectionJSInline,
	SectionHeaderData,
	"</head>",
	SectionBody,
	SectionJSLibsFooter,
	SectionJSIncludeFooter,
	SectionJSInlineFooter,
	SectionFooterData,
	"</body>",
	"</html>",
}

// deferredSections are replaced by section markers when a page still holds
// non-cacheable content. Non-cacheable content may add assets, so these are
// rendered only once that content has been evaluated.
var deferredSections = []string{
	SectionTitle,
	SectionMeta,
	SectionCSSLibs,
	SectionCSSInclude,
	SectionCSSInline,
	SectionJSLibs,
	SectionJSInclude,
	SectionJSInline,
	SectionHeaderData,
	SectionJSLibsFooter,
	SectionJSIncludeFooter,
	SectionJSInlineFooter,
	SectionFooterData,
}

// SectionMarker returns the in-page marker for a deferred section.
func SectionMarker(section, key string) string {
	return "<!-- ###" + section + key + "### -->"
}

// URLFunc maps a public-relative resource path to the URL emitted in markup.
type URLFunc func(ctx context.Context, path string) (string, error)

// RenderOptions are the collaborators used while rendering.
type RenderOptions struct {
	// URL rewrites local resource paths. Nil leaves paths unchanged.
	URL URLFunc
	// Nonce is added to inline <style> and <script> elements.
	Nonce *nonce.Nonce
	// Files reads local files for inline stylesheets.
	Files fs.FS
	// Compressor applies the compression and concatenation flags.
	Compressor *Compressor
	// Collector contributes component assets.
	Collector *AssetCollector
}

// Render renders the complete page and finalizes the registry.
func (r *Registry) Render(ctx context.Context, opts RenderOptions) (string, error) {
	if r.finalized {
		return "", ErrFinalized
	}
	sections, err := r.renderSections(ctx, opts)
	if err != nil {
		return "", err
	}
	r.finalized = true
	return assemble(sections), nil
}

// RenderWithUncachedObjects renders the page skeleton with every deferred
// section replaced by its marker. The registry is left open so that the
// non-cacheable content can still register assets.
func (r *Registry) RenderWithUncachedObjects(ctx context.Context, key string, opts RenderOptions) (string, error) {
	if r.finalized {
		return "", ErrFinalized
	}
	sections, err := r.renderDocumentSections(ctx, opts)
	if err != nil {
		return "", err
	}
	for _, name := range deferredSections {
		sections[name] = SectionMarker(name, key)
	}
	return assemble(sections), nil
}

// RenderSectionsInto replaces the section markers written by
// RenderWithUncachedObjects with the rendered sections and finalizes the
// registry. Sections that render empty remove their line.
func (r *Registry) RenderSectionsInto(ctx context.Context, content, key string, opts RenderOptions) (string, error) {
	if r.finalized {
		return "", ErrFinalized
	}
	sections, err := r.renderSections(ctx, opts)
	if err != nil {
		return "", err
	}
	for _, name := range deferredSections {
		marker := SectionMarker(name, key)
		value := sections[name]
		if value == "" {
			content = strings.ReplaceAll(content, marker+"\n", "")
		}
		content = strings.ReplaceAll(content, marker, value)
	}
	r.finalized = true
	return content, nil
}

func assemble(sections map[string]string) string {
	lines := make([]string, 0, len(template))
	for _, entry := range template {
		value, isSection := sections[entry]
		if !isSection {
			if _, known := sectionSet[entry]; known {
				continue
			}
			value = entry
		}
		if value == "" {
			continue
		}
		lines = append(lines, value)
	}
	return strings.Join(lines, "\n")
}

var sectionSet = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, entry := range template {
		if !strings.HasPrefix(entry, "<") {
			m[entry] = struct{}{}
		}
	}
	return m
}()

func (r *Registry) renderDocumentSections(ctx context.Context, opts RenderOptions) (map[string]string, error) {
	d := r.state.Document
	s := map[string]string{
		SectionXMLPrologDocType: d.XMLPrologAndDocType,
		SectionHTMLTag:          d.HTMLTag,
		SectionHeadTag:          d.HeadTag,
		SectionBody:             d.BodyContent,
	}
	if d.CharSet != "" {
		if d.XHTML {
			s[SectionMetaCharset] = `<meta http-equiv="Content-Type" content="text/html; charset=` + escape(d.CharSet) + `"` + r.endingSlash() + `>`
		} else {
			s[SectionMetaCharset] = `<meta charset="` + escape(d.CharSet) + `"` + r.endingSlash() + `>`
		}
	}
	if len(d.InlineComments) > 0 {
		var b strings.Builder
		b.WriteString("<!-- ")
		b.WriteString(strings.Join(d.InlineComments, "\n"))
		b.WriteString(" -->")
		s[SectionInlineComment] = b.String()
	}
	if d.BaseURL != "" {
		s[SectionBaseURL] = `<base href="` + escape(d.BaseURL) + `"` + r.endingSlash() + `>`
	}
	if d.FavIcon != "" {
		href, err := r.publicURL(ctx, opts, d.FavIcon)
		if err != nil {
			return nil, err
		}
		icon := `<link rel="icon" href="` + escape(href) + `"`
		if d.IconMimeType != "" {
			icon += ` type="` + escape(d.IconMimeType) + `"`
		}
		s[SectionShortcut] = icon + r.endingSlash() + `>`
	}
	return s, nil
}

func (r *Registry) renderSections(ctx context.Context, opts RenderOptions) (map[string]string, error) {
	s, err := r.renderDocumentSections(ctx, opts)
	if err != nil {
		return nil, err
	}

	state := r.state.Clone()
	if opts.Collector != nil {
		opts.Collector.mergeInto(&state)
	}
	if opts.Compressor != nil {
		state, err = opts.Compressor.Process(ctx, state)
		if err != nil {
			return nil, err
		}
	}

	if state.Document.Title != "" {
		s[SectionTitle] = strings.Replace(state.Document.TitleTag, "|", html.EscapeString(state.Document.Title), 1)
	}
	s[SectionMeta] = r.renderMeta(state.MetaTags)

	if s[SectionCSSLibs], err = r.renderCSSList(ctx, opts, state.CSSLibs.Values()); err != nil {
		return nil, err
	}
	if s[SectionCSSInclude], err = r.renderCSSList(ctx, opts, state.CSSFiles.Values()); err != nil {
		return nil, err
	}
	s[SectionCSSInline] = r.renderInline("style", state.CSSInline.Values(), opts.Nonce)

	jsLibs, err := r.renderJSList(ctx, opts, state.JSLibs.Values())
	if err != nil {
		return nil, err
	}
	jsFiles, err := r.renderJSList(ctx, opts, state.JSFiles.Values())
	if err != nil {
		return nil, err
	}
	jsInlineBlocks := append(inlineSettingsBlock(state), state.JSInline.Values()...)
	jsInline := r.renderInline("script", jsInlineBlocks, opts.Nonce)

	footerLibs, err := r.renderJSList(ctx, opts, state.JSFooterLibs.Values())
	if err != nil {
		return nil, err
	}
	footerFiles, err := r.renderJSList(ctx, opts, state.JSFooterFiles.Values())
	if err != nil {
		return nil, err
	}
	footerInline := r.renderInline("script", state.JSFooterInline.Values(), opts.Nonce)

	if state.Flags.MoveJSFromHeaderToFooter {
		footerLibs = joinNonEmpty(jsLibs, footerLibs)
		footerFiles = joinNonEmpty(jsFiles, footerFiles)
		footerInline = joinNonEmpty(jsInline, footerInline)
		jsLibs, jsFiles, jsInline = "", "", ""
	}
	s[SectionJSLibs] = jsLibs
	s[SectionJSInclude] = jsFiles
	s[SectionJSInline] = jsInline
	s[SectionJSLibsFooter] = footerLibs
	s[SectionJSIncludeFooter] = footerFiles
	s[SectionJSInlineFooter] = footerInline

	s[SectionHeaderData] = strings.Join(state.HeaderData, "\n")
	s[SectionFooterData] = strings.Join(state.FooterData, "\n")
	return s, nil
}

func (r *Registry) renderMeta(tags []MetaTag) string {
	lines := make([]string, 0, len(tags))
	for _, tag := range tags {
		lines = append(lines, `<meta `+tag.Kind+`="`+escape(tag.Name)+`" content="`+escape(tag.Content)+`"`+r.endingSlash()+`>`)
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) renderCSSList(ctx context.Context, opts RenderOptions, entries []CSSEntry) (string, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		tag, err := r.cssTag(ctx, opts, e)
		if err != nil {
			return "", err
		}
		lines = append(lines, wrapTag(tag, e.Wrap, e.SplitChar))
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Registry) cssTag(ctx context.Context, opts RenderOptions, e CSSEntry) (string, error) {
	if e.Inline && opts.Files != nil && !IsExternal(e.Source) {
		if data, err := fs.ReadFile(opts.Files, strings.TrimPrefix(e.Source, "/")); err == nil {
			attrs := Attributes{{Name: "media", Value: e.Media}}
			if opts.Nonce != nil {
				attrs = append(attrs, Attribute{Name: "nonce", Value: opts.Nonce.Consume()})
			}
			return "<style" + formatAttributes(attrs) + ">\n" + string(data) + "\n</style>", nil
		}
	}
	href, err := r.publicURL(ctx, opts, e.Source)
	if err != nil {
		return "", err
	}
	attrs := Attributes{
		{Name: "rel", Value: e.Relation},
		{Name: "href", Value: href},
		{Name: "media", Value: e.Media},
	}
	if e.Title != "" {
		attrs = append(attrs, Attribute{Name: "title", Value: e.Title})
	}
	for _, extra := range e.ExtraAttributes {
		attrs = attrs.Set(extra.Name, extra.Value)
	}
	return "<link" + formatAttributes(attrs) + r.endingSlash() + ">", nil
}

func (r *Registry) renderJSList(ctx context.Context, opts RenderOptions, entries []JSEntry) (string, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		src, err := r.publicURL(ctx, opts, e.Source)
		if err != nil {
			return "", err
		}
		attrs := Attributes{{Name: "src", Value: src}}
		if t := e.ScriptType(); t != "" {
			attrs = append(attrs, Attribute{Name: "type", Value: t})
		}
		if e.Async {
			attrs = append(attrs, Attribute{Name: "async", Value: "async"})
		}
		if e.Defer {
			attrs = append(attrs, Attribute{Name: "defer", Value: "defer"})
		}
		if e.Nomodule {
			attrs = append(attrs, Attribute{Name: "nomodule", Value: "nomodule"})
		}
		if e.Integrity != "" {
			attrs = append(attrs, Attribute{Name: "integrity", Value: e.Integrity})
		}
		if e.CrossOrigin != "" {
			attrs = append(attrs, Attribute{Name: "crossorigin", Value: e.CrossOrigin})
		}
		for _, extra := range e.ExtraAttributes {
			attrs = attrs.Set(extra.Name, extra.Value)
		}
		lines = append(lines, wrapTag("<script"+formatAttributes(attrs)+"></script>", e.Wrap, e.SplitChar))
	}
	return strings.Join(lines, "\n"), nil
}

// renderInline joins inline blocks into a single element.
func (r *Registry) renderInline(element string, blocks []InlineBlock, n *nonce.Nonce) string {
	if len(blocks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<" + element)
	if n != nil {
		b.WriteString(` nonce="` + escape(n.Consume()) + `"`)
	}
	b.WriteString(">\n")
	for _, block := range blocks {
		b.WriteString("/*" + block.Name + "*/\n")
		b.WriteString(block.Code)
		b.WriteString("\n")
	}
	b.WriteString("</" + element + ">")
	return b.String()
}

// inlineSettingsBlock exposes inline settings and labels to scripts.
func inlineSettingsBlock(state State) []InlineBlock {
	if len(state.InlineSettings) == 0 && len(state.InlineLabels) == 0 {
		return nil
	}
	payload := make(map[string]any, 2)
	if len(state.InlineSettings) > 0 {
		payload["settings"] = state.InlineSettings
	}
	if len(state.InlineLabels) > 0 {
		payload["lang"] = state.InlineLabels
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return []InlineBlock{{
		Name: "inlineSettings",
		Code: "window.frontpage = Object.assign(window.frontpage || {}, " + string(data) + ");",
	}}
}

func (r *Registry) publicURL(ctx context.Context, opts RenderOptions, path string) (string, error) {
	if opts.URL == nil || IsExternal(path) {
		return path, nil
	}
	u, err := opts.URL(ctx, path)
	if err != nil {
		return "", fmt.Errorf("public url for %s: %w", path, err)
	}
	return u, nil
}

func (r *Registry) endingSlash() string {
	if r.state.Document.XHTML {
		return " /"
	}
	return ""
}

func formatAttributes(attrs Attributes) string {
	var b strings.Builder
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escape(a.Value))
		b.WriteString(`"`)
	}
	return b.String()
}

func escape(v string) string {
	return html.EscapeString(v)
}

// wrapTag surrounds tag with the two halves of wrap.
func wrapTag(tag, wrap, splitChar string) string {
	if wrap == "" {
		return tag
	}
	if splitChar == "" {
		splitChar = "|"
	}
	parts := strings.SplitN(wrap, splitChar, 2)
	if len(parts) < 2 {
		return tag
	}
	return parts[0] + tag + parts[1]
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// IsExternal reports whether source is an absolute URL.
func IsExternal(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}
