package frontend

import (
	"context"
	"io/fs"
	"mime"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/document"
	"github.com/conneroisu/frontpage/internal/events"
	"github.com/conneroisu/frontpage/internal/page"
	"github.com/conneroisu/frontpage/internal/placeholder"
	"github.com/conneroisu/frontpage/internal/sanitize"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// Keys of a CSS entry that configure the entry itself. Everything else is
// emitted as an HTML attribute.
var cssOptionKeys = map[string]bool{
	"if": true, "alternate": true, "media": true, "title": true,
	"external": true, "inline": true, "disableCompression": true,
	"excludeFromConcatenation": true, "allWrap": true, "forceOnTop": true,
}

var jsOptionKeys = map[string]bool{
	"if": true, "type": true, "crossorigin": true, "integrity": true,
	"external": true, "async": true, "defer": true, "nomodule": true,
	"disableCompression": true, "excludeFromConcatenation": true,
	"allWrap": true, "forceOnTop": true, "moduleType": true,
}

// populate fills the asset registry from the page setup. The steps run in a
// fixed order; each is skipped when its configuration is absent.
func (h *Handler) populate(ctx context.Context, rc *page.RenderContext) error {
	steps := []func(context.Context, *page.RenderContext) error{
		h.populateDocument,
		h.populatePluginCSS,
		h.populateCSSFiles,
		h.populateCSSLibs,
		h.populateInlineCSS,
		h.populateJSLibs,
		h.populateJSFooterLibs,
		h.populateJSFiles,
		h.populateJSFooterFiles,
		h.populateHeaderData,
		h.populateFooterData,
		h.populateTitle,
		h.populateHrefLang,
		h.populateMeta,
		h.populateInlineJS,
		h.populateLanguageLabels,
		h.populateInlineSettings,
		h.populateFlags,
		h.populateAdditionalData,
		h.populateBodyTag,
	}
	for _, step := range steps {
		if err := step(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) populateDocument(ctx context.Context, rc *page.RenderContext) error {
	reg := rc.Assets
	doctype := document.ParseDocType(rc.Config.String("doctype"))
	tags := document.Compose(rc.Config, rc.Locale, doctype)

	reg.SetXHTML(doctype.IsXMLCompliant())
	reg.SetXMLPrologAndDocType(tags.XMLPrologAndDocType)

	htmlTag, err := h.eval.StdWrap(ctx, rc, tags.HTMLTag, rc.Config.Child("htmlTag_stdWrap"))
	if err != nil {
		return err
	}
	reg.SetHTMLTag(htmlTag)

	headTag, err := h.eval.StdWrap(ctx, rc, document.HeadTag(rc.PageSetup), rc.PageSetup.Child("headTag"))
	if err != nil {
		return err
	}
	reg.SetHeadTag(headTag)

	if cs := rc.Config.String("metaCharset"); cs != "" {
		reg.SetCharSet(cs)
	}
	if c := rc.Config.String("headerComment"); c != "" {
		reg.AddInlineComment(c)
	}
	if base := rc.Config.String("baseURL"); base != "" {
		reg.SetBaseURL(base)
	}
	if icon := rc.PageSetup.String("shortcutIcon"); icon != "" {
		if src, err := h.sanitizer.Sanitize(icon, false); err == nil {
			reg.SetFavIcon(src, iconMimeType(src))
		} else {
			h.logger.Debug(ctx, "favicon skipped", "path", icon, "error", err.Error())
		}
	}
	return nil
}

func iconMimeType(src string) string {
	file, _, _ := strings.Cut(src, "?")
	ext := strings.ToLower(path.Ext(file))
	if ext == ".ico" {
		return "image/vnd.microsoft.icon"
	}
	t := mime.TypeByExtension(ext)
	t, _, _ = strings.Cut(t, ";")
	return t
}

// populatePluginCSS collects the default styles of every plugin into one
// block.
func (h *Handler) populatePluginCSS(ctx context.Context, rc *page.RenderContext) error {
	plugins := rc.Setup.Child("plugin")
	var styles []string
	for _, key := range plugins.Keys() {
		conf := plugins.Child(key).Child("_CSS_DEFAULT_STYLE")
		if conf == nil {
			continue
		}
		css, err := h.eval.StdWrap(ctx, rc, conf.Value(), conf)
		if err != nil {
			return err
		}
		if strings.TrimSpace(css) != "" {
			styles = append(styles, "/* default styles for extension \""+key+"\" */\n"+css)
		}
	}
	if len(styles) > 0 {
		h.addInlineStyle(ctx, rc, "InlineDefaultCss", strings.Join(styles, "\n"), true)
	}
	return nil
}

func (h *Handler) populateCSSFiles(ctx context.Context, rc *page.RenderContext) error {
	return h.eachResource(ctx, rc, "includeCSS", func(key, src string, e *tstree.Node) {
		rc.Assets.AddCSSFile(src, cssOptions(e))
	})
}

func (h *Handler) populateCSSLibs(ctx context.Context, rc *page.RenderContext) error {
	return h.eachResource(ctx, rc, "includeCSSLibs", func(key, src string, e *tstree.Node) {
		rc.Assets.AddCSSLibrary(src, cssOptions(e))
	})
}

func (h *Handler) populateInlineCSS(ctx context.Context, rc *page.RenderContext) error {
	conf := rc.PageSetup.Child("cssInline")
	if conf == nil {
		return nil
	}
	css, err := h.eval.Render(ctx, rc, conf)
	if err != nil {
		return err
	}
	if strings.TrimSpace(css) != "" {
		h.addInlineStyle(ctx, rc, "InlinePageCss", css, false)
	}
	return nil
}

func (h *Handler) populateJSLibs(ctx context.Context, rc *page.RenderContext) error {
	return h.eachResource(ctx, rc, "includeJSLibs", func(key, src string, e *tstree.Node) {
		rc.Assets.AddJSLibrary(key, src, jsOptions(src, e))
	})
}

func (h *Handler) populateJSFooterLibs(ctx context.Context, rc *page.RenderContext) error {
	return h.eachResource(ctx, rc, "includeJSFooterlibs", func(key, src string, e *tstree.Node) {
		rc.Assets.AddJSFooterLibrary(key, src, jsOptions(src, e))
	})
}

func (h *Handler) populateJSFiles(ctx context.Context, rc *page.RenderContext) error {
	return h.eachResource(ctx, rc, "includeJS", func(key, src string, e *tstree.Node) {
		rc.Assets.AddJSFile(src, jsOptions(src, e))
	})
}

func (h *Handler) populateJSFooterFiles(ctx context.Context, rc *page.RenderContext) error {
	return h.eachResource(ctx, rc, "includeJSFooter", func(key, src string, e *tstree.Node) {
		rc.Assets.AddJSFooterFile(src, jsOptions(src, e))
	})
}

// eachResource walks the resource entries under key of the page setup.
// Containers, entries whose condition fails and entries that cannot be
// sanitized are skipped.
func (h *Handler) eachResource(ctx context.Context, rc *page.RenderContext, key string, add func(key, src string, e *tstree.Node)) error {
	list := rc.PageSetup.Child(key)
	for _, k := range list.Keys() {
		e := list.Child(k)
		if !e.HasValue() || e.Value() == "" {
			continue
		}
		if cond := e.Child("if"); cond != nil {
			ok, err := h.eval.CheckIf(ctx, rc, cond)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		src := e.Value()
		if !e.Bool("external") {
			clean, err := h.sanitizer.Sanitize(src, true)
			if err != nil {
				h.logger.Debug(ctx, "resource skipped", "list", key, "path", src, "error", err.Error())
				continue
			}
			src = clean
		}
		add(k, src, e)
	}
	return nil
}

func cssOptions(e *tstree.Node) assets.CSSFileOptions {
	rel := "stylesheet"
	if e.Bool("alternate") {
		rel = "alternate stylesheet"
	}
	return assets.CSSFileOptions{
		Relation:          rel,
		Media:             e.String("media"),
		Title:             e.String("title"),
		Compress:          !e.Bool("disableCompression"),
		ForceTop:          e.Bool("forceOnTop"),
		Wrap:              e.String("allWrap"),
		ExcludeFromConcat: e.Bool("excludeFromConcatenation"),
		SplitChar:         e.String("allWrap.splitChar"),
		Inline:            e.Bool("inline"),
		Attributes:        extraAttributes(e, cssOptionKeys),
	}
}

func jsOptions(src string, e *tstree.Node) assets.JSFileOptions {
	crossOrigin := e.String("crossorigin")
	external := e.Bool("external") || sanitize.IsExternal(src)
	if crossOrigin == "" && e.String("integrity") != "" && external {
		crossOrigin = "anonymous"
	}
	return assets.JSFileOptions{
		Type:              e.String("type"),
		Compress:          !e.Bool("disableCompression"),
		ForceTop:          e.Bool("forceOnTop"),
		Wrap:              e.String("allWrap"),
		ExcludeFromConcat: e.Bool("excludeFromConcatenation"),
		SplitChar:         e.String("allWrap.splitChar"),
		Async:             e.Bool("async"),
		Defer:             e.Bool("defer"),
		CrossOrigin:       crossOrigin,
		Integrity:         e.String("integrity"),
		Nomodule:          e.Bool("nomodule"),
		ModuleType:        e.String("moduleType"),
		Attributes:        extraAttributes(e, jsOptionKeys),
	}
}

// extraAttributes returns the scalar children of e that are not entry
// options, in configuration order.
func extraAttributes(e *tstree.Node, handled map[string]bool) assets.Attributes {
	var attrs assets.Attributes
	for _, k := range e.Keys() {
		if handled[k] {
			continue
		}
		c := e.Child(k)
		if !c.HasValue() {
			continue
		}
		attrs = append(attrs, assets.Attribute{Name: k, Value: c.Value()})
	}
	return attrs
}

// addInlineStyle registers css inline or, with config.inlineStyle2TempFile,
// as a generated stylesheet file. CSS holding markers always stays inline.
func (h *Handler) addInlineStyle(ctx context.Context, rc *page.RenderContext, name, css string, excludeFromConcat bool) {
	compress := rc.Config.Bool("compressCss")
	if rc.Config.Bool("inlineStyle2TempFile") && !placeholder.Contains(css) {
		file, err := h.temp.WriteCSS(css)
		if err == nil {
			rc.Assets.AddCSSFile(file, assets.CSSFileOptions{Compress: compress, ExcludeFromConcat: excludeFromConcat})
			return
		}
		h.logger.Warn(ctx, err, "write inline style file failed", "name", name)
	}
	rc.Assets.AddCSSInlineBlock(name, css, compress, false)
}

func (h *Handler) populateHeaderData(ctx context.Context, rc *page.RenderContext) error {
	conf := rc.PageSetup.Child("headerData")
	if conf == nil {
		return nil
	}
	data, err := h.eval.Render(ctx, rc, conf)
	if err != nil {
		return err
	}
	rc.Assets.AddHeaderData(data)
	return nil
}

func (h *Handler) populateFooterData(ctx context.Context, rc *page.RenderContext) error {
	conf := rc.PageSetup.Child("footerData")
	if conf == nil {
		return nil
	}
	data, err := h.eval.Render(ctx, rc, conf)
	if err != nil {
		return err
	}
	rc.Assets.AddFooterData(data)
	return nil
}

// populateTitle computes the title from the page record and the site title.
// config.noPageTitle: 0 prints both, 1 only the page title, 2 no title tag.
func (h *Handler) populateTitle(ctx context.Context, rc *page.RenderContext) error {
	mode := rc.Config.Int("noPageTitle", 0)
	if mode == 2 {
		rc.Assets.SetTitleTag("")
		rc.Assets.SetTitle("")
		rc.Title = ""
		return nil
	}

	pageTitle, err := h.eval.StdWrap(ctx, rc, rc.Data["title"], rc.Config.Child("pageTitle"))
	if err != nil {
		return err
	}
	siteTitle := ""
	if mode == 0 {
		siteTitle = strings.TrimSpace(rc.Config.String("sitetitle"))
	}
	sep := rc.Config.StringDefault("pageTitleSeparator", ":")
	sep, err = h.eval.StdWrap(ctx, rc, sep, rc.Config.Child("pageTitleSeparator"))
	if err != nil {
		return err
	}
	if rc.Config.Child("pageTitleSeparator").Len() == 0 {
		sep += " "
	}

	title := pageTitle
	switch {
	case pageTitle != "" && siteTitle != "":
		if rc.Config.Bool("pageTitleFirst") {
			title = pageTitle + sep + siteTitle
		} else {
			title = siteTitle + sep + pageTitle
		}
	case siteTitle != "":
		title = siteTitle
	}
	rc.Title = title
	rc.Assets.SetTitle(title)
	return nil
}

// populateHrefLang emits alternate links when more than one language version
// is known. Listener errors abort the request.
func (h *Handler) populateHrefLang(ctx context.Context, rc *page.RenderContext) error {
	ev := &events.ModifyHrefLangTags{Path: rc.Path}
	conf := rc.Config.Child("hreflang")
	for _, k := range conf.Keys() {
		e := conf.Child(k)
		if e.Value() == "" {
			continue
		}
		lang := e.StringDefault("lang", k)
		ev.Set(lang, e.Value())
	}
	if err := h.events.DispatchHrefLang(ctx, ev); err != nil {
		return err
	}
	if len(ev.Tags) <= 1 {
		return nil
	}
	for _, t := range ev.Tags {
		rc.Assets.AddHeaderData(`<link rel="alternate" hreflang="` + html.EscapeString(t.Lang) +
			`" href="` + html.EscapeString(t.URL) + `"/>`)
	}
	return nil
}

// populateMeta registers meta tags. A tag's attribute kind comes from its
// "attribute" option (default name). Multiple values and the "value" fallback
// never replace existing tags; "replace" only applies to the main value.
func (h *Handler) populateMeta(ctx context.Context, rc *page.RenderContext) error {
	meta := rc.PageSetup.Child("meta")
	for _, name := range meta.Keys() {
		e := meta.Child(name)
		kind := e.StringDefault("attribute", assets.MetaName)
		if e.Bool("httpEquivalent") {
			kind = assets.MetaHTTPEquiv
		}

		var contents []string
		replace := false
		if values := e.Child("value"); values != nil && !e.HasValue() {
			if values.IsTree() {
				for _, k := range values.Keys() {
					contents = append(contents, values.Child(k).Value())
				}
			} else {
				contents = append(contents, values.Value())
			}
		} else {
			content, err := h.eval.StdWrap(ctx, rc, e.Value(), e)
			if err != nil {
				return err
			}
			contents = append(contents, content)
			replace = e.Bool("replace")
		}

		for _, content := range contents {
			if strings.TrimSpace(content) == "" {
				continue
			}
			if err := rc.Assets.SetMetaTag(kind, name, content, replace); err != nil {
				h.logger.Warn(ctx, err, "meta tag skipped", "name", name, "attribute", kind)
			}
		}
	}
	return nil
}

// populateInlineJS registers jsInline and jsFooterInline. With
// config.removeDefaultJS = external the code goes to a generated file, but
// markers are split off first and always stay inline.
func (h *Handler) populateInlineJS(ctx context.Context, rc *page.RenderContext) error {
	compress := rc.Config.Bool("compressJs")
	external := rc.Config.String("removeDefaultJS") == "external"

	for _, part := range []struct {
		key, intName, name string
		footer             bool
	}{
		{"jsInline", "TS_inlineJSint", "TS_inlineJS", false},
		{"jsFooterInline", "TS_inlineFooterJSint", "TS_inlineFooter", true},
	} {
		conf := rc.PageSetup.Child(part.key)
		if conf == nil {
			continue
		}
		code, err := h.eval.Render(ctx, rc, conf)
		if err != nil {
			return err
		}
		if strings.TrimSpace(code) == "" {
			continue
		}

		addInline := rc.Assets.AddJSInlineCode
		if part.footer {
			addInline = rc.Assets.AddJSFooterInlineCode
		}
		if !external {
			addInline(part.name, code, compress, false)
			continue
		}

		clean, markers := placeholder.Strip(code)
		if markers != "" {
			addInline(part.intName, markers, compress, false)
		}
		if strings.TrimSpace(clean) == "" {
			continue
		}
		file, err := h.temp.WriteJS(clean)
		if err != nil {
			h.logger.Warn(ctx, err, "write inline script file failed", "name", part.name)
			addInline(part.name, clean, compress, false)
			continue
		}
		if part.footer {
			rc.Assets.AddJSFooterFile(file, assets.JSFileOptions{Compress: compress})
		} else {
			rc.Assets.AddJSFile(file, assets.JSFileOptions{Compress: compress})
		}
	}
	return nil
}

// populateLanguageLabels loads inlineLanguageLabelFiles (YAML label files
// below the public directory) and inlineLanguageLabel.
func (h *Handler) populateLanguageLabels(ctx context.Context, rc *page.RenderContext) error {
	labels := make(map[string]string)
	files := rc.PageSetup.Child("inlineLanguageLabelFiles")
	for _, k := range files.Keys() {
		e := files.Child(k)
		if e.Value() == "" {
			continue
		}
		src, err := h.sanitizer.Sanitize(e.Value(), false)
		if err != nil {
			h.logger.Debug(ctx, "label file skipped", "path", e.Value(), "error", err.Error())
			continue
		}
		file, _, _ := strings.Cut(src, "?")
		data, err := fs.ReadFile(h.files, file)
		if err != nil {
			h.logger.Warn(ctx, err, "read label file failed", "path", file)
			continue
		}
		tree, err := tstree.ParseYAML(data)
		if err != nil {
			h.logger.Warn(ctx, err, "parse label file failed", "path", file)
			continue
		}
		prefix := e.String("selectionPrefix")
		strip := e.String("stripFromSelectionName")
		for name, value := range flatten(tree, "") {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			if strip != "" {
				name = strings.TrimPrefix(name, strip)
			}
			labels[name] = value
		}
	}
	direct := rc.PageSetup.Child("inlineLanguageLabel")
	for _, k := range direct.Keys() {
		labels[k] = direct.Child(k).Value()
	}
	if len(labels) > 0 {
		rc.Assets.AddInlineLanguageLabels(labels)
	}
	return nil
}

func flatten(n *tstree.Node, prefix string) map[string]string {
	out := make(map[string]string)
	for _, k := range n.Keys() {
		c := n.Child(k)
		name := prefix + k
		if c.HasValue() {
			out[name] = c.Value()
		}
		for sub, v := range flatten(c, name+".") {
			out[sub] = v
		}
	}
	return out
}

func (h *Handler) populateInlineSettings(_ context.Context, rc *page.RenderContext) error {
	if conf := rc.PageSetup.Child("inlineSettings"); conf.IsTree() {
		rc.Assets.AddInlineSettings("TS", conf)
	}
	return nil
}

func (h *Handler) populateFlags(_ context.Context, rc *page.RenderContext) error {
	reg := rc.Assets
	if rc.Config.Bool("compressCss") {
		reg.EnableCompressCSS()
	}
	if rc.Config.Bool("compressJs") {
		reg.EnableCompressJS()
	}
	if rc.Config.Bool("concatenateCss") {
		reg.EnableConcatenateCSS()
	}
	if rc.Config.Bool("concatenateJs") {
		reg.EnableConcatenateJS()
	}
	if rc.Config.Bool("moveJsFromHeaderToFooter") {
		reg.EnableMoveJSFromHeaderToFooter()
	}
	return nil
}

// populateAdditionalData adds data that content objects registered on the
// render context. Pages with uncached fragments get markers instead, filled
// after the fragments ran.
func (h *Handler) populateAdditionalData(_ context.Context, rc *page.RenderContext) error {
	if rc.HasUncachedFragments {
		h.ensureDivKey(rc)
		rc.Assets.AddHeaderData(headerDataMarker(rc.Ext.DivKey))
		rc.Assets.AddFooterData(footerDataMarker(rc.Ext.DivKey))
		rc.Ext.AdditionalHeaderData = append(page.Fragments(nil), rc.AdditionalHeaderData...)
		rc.Ext.AdditionalFooterData = append(page.Fragments(nil), rc.AdditionalFooterData...)
		return nil
	}
	for _, d := range rc.AdditionalHeaderData.Markup() {
		rc.Assets.AddHeaderData(d)
	}
	for _, d := range rc.AdditionalFooterData.Markup() {
		rc.Assets.AddFooterData(d)
	}
	return nil
}

func headerDataMarker(key string) string { return "<!--HD_" + key + "-->" }

func footerDataMarker(key string) string { return "<!--FD_" + key + "-->" }

func (h *Handler) populateBodyTag(ctx context.Context, rc *page.RenderContext) error {
	bodyTag := document.BodyTag(rc.PageSetup)
	if c := rc.PageSetup.Child("bodyTagCObject"); c.HasValue() {
		out, err := h.eval.RenderSingle(ctx, rc, c.Value(), c)
		if err != nil {
			return err
		}
		bodyTag = out
	}
	rc.Assets.AddBodyContent(bodyTag)
	return nil
}
