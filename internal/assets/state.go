// Package assets implements the asset registry that accumulates CSS, JS, meta
// tags and head/footer markup while a page is generated, and renders them into
// the final document.
//
// The registry state is plain data so that it can be snapshotted alongside a
// cached page and restored when only the non-cacheable parts of that page are
// rendered again.
package assets

// Attribute is a single HTML attribute. Attributes are kept in slices so that
// output order is stable.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attributes is an ordered attribute list.
type Attributes []Attribute

// Get returns the value for name.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Set returns a copy of a with name set to value, replacing an existing entry
// in place.
func (a Attributes) Set(name, value string) Attributes {
	out := make(Attributes, 0, len(a)+1)
	replaced := false
	for _, attr := range a {
		if attr.Name == name {
			out = append(out, Attribute{Name: name, Value: value})
			replaced = true
			continue
		}
		out = append(out, attr)
	}
	if !replaced {
		out = append(out, Attribute{Name: name, Value: value})
	}
	return out
}

// CSSEntry is a stylesheet file or library.
type CSSEntry struct {
	Source            string     `json:"source"`
	Relation          string     `json:"relation"`
	Media             string     `json:"media"`
	Title             string     `json:"title,omitempty"`
	Compress          bool       `json:"compress"`
	ForceTop          bool       `json:"forceTop"`
	Wrap              string     `json:"wrap,omitempty"`
	ExcludeFromConcat bool       `json:"excludeFromConcat"`
	SplitChar         string     `json:"splitChar,omitempty"`
	Inline            bool       `json:"inline"`
	ExtraAttributes   Attributes `json:"extraAttributes,omitempty"`
}

// JSEntry is a script file or library.
type JSEntry struct {
	Name              string     `json:"name,omitempty"`
	Source            string     `json:"source"`
	Type              string     `json:"type,omitempty"`
	Compress          bool       `json:"compress"`
	ForceTop          bool       `json:"forceTop"`
	Wrap              string     `json:"wrap,omitempty"`
	ExcludeFromConcat bool       `json:"excludeFromConcat"`
	SplitChar         string     `json:"splitChar,omitempty"`
	Async             bool       `json:"async"`
	Defer             bool       `json:"defer"`
	CrossOrigin       string     `json:"crossOrigin,omitempty"`
	Integrity         string     `json:"integrity,omitempty"`
	Nomodule          bool       `json:"nomodule"`
	ModuleType        string     `json:"moduleType,omitempty"`
	ExtraAttributes   Attributes `json:"extraAttributes,omitempty"`
}

// ScriptType is the value of the rendered type attribute. A module type
// ("module") takes precedence over Type; module scripts are never concatenated.
func (e JSEntry) ScriptType() string {
	if e.ModuleType != "" {
		return e.ModuleType
	}
	return e.Type
}

// InlineBlock is a named chunk of inline CSS or JS.
type InlineBlock struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Compress bool   `json:"compress"`
	ForceTop bool   `json:"forceTop"`
}

// MetaTag is one rendered <meta> element.
type MetaTag struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Meta tag attribute kinds.
const (
	MetaName      = "name"
	MetaProperty  = "property"
	MetaHTTPEquiv = "http-equiv"
)

// List is an insertion-ordered collection keyed by string. Adding a key that
// already exists is a no-op, so the first registration wins.
type List[T any] struct {
	Keys  []string     `json:"keys"`
	Items map[string]T `json:"items"`
}

// Add appends item under key, or prepends it when top is set.
func (l *List[T]) Add(key string, item T, top bool) bool {
	if l.Items == nil {
		l.Items = make(map[string]T)
	}
	if _, exists := l.Items[key]; exists {
		return false
	}
	l.Items[key] = item
	if top {
		l.Keys = append([]string{key}, l.Keys...)
	} else {
		l.Keys = append(l.Keys, key)
	}
	return true
}

// Has reports whether key exists.
func (l List[T]) Has(key string) bool {
	_, ok := l.Items[key]
	return ok
}

// Len returns the number of entries.
func (l List[T]) Len() int {
	return len(l.Keys)
}

// Values returns the entries in order.
func (l List[T]) Values() []T {
	out := make([]T, 0, len(l.Keys))
	for _, k := range l.Keys {
		out = append(out, l.Items[k])
	}
	return out
}

func (l List[T]) clone() List[T] {
	out := List[T]{Keys: append([]string(nil), l.Keys...)}
	if l.Items != nil {
		out.Items = make(map[string]T, len(l.Items))
		for k, v := range l.Items {
			out.Items[k] = v
		}
	}
	return out
}

// Document holds the strings that frame the page.
type Document struct {
	XMLPrologAndDocType string   `json:"xmlPrologAndDocType,omitempty"`
	HTMLTag             string   `json:"htmlTag,omitempty"`
	HeadTag             string   `json:"headTag,omitempty"`
	CharSet             string   `json:"charSet,omitempty"`
	FavIcon             string   `json:"favIcon,omitempty"`
	IconMimeType        string   `json:"iconMimeType,omitempty"`
	BaseURL             string   `json:"baseUrl,omitempty"`
	Title               string   `json:"title,omitempty"`
	TitleTag            string   `json:"titleTag,omitempty"`
	InlineComments      []string `json:"inlineComments,omitempty"`
	BodyContent         string   `json:"bodyContent,omitempty"`
	XHTML               bool     `json:"xhtml"`
}

// Flags toggles processing applied at render time.
type Flags struct {
	CompressCSS              bool `json:"compressCss"`
	CompressJS               bool `json:"compressJs"`
	ConcatenateCSS           bool `json:"concatenateCss"`
	ConcatenateJS            bool `json:"concatenateJs"`
	MoveJSFromHeaderToFooter bool `json:"moveJsFromHeaderToFooter"`
}

// State is everything the registry accumulates for one page.
type State struct {
	CSSLibs        List[CSSEntry]    `json:"cssLibs"`
	CSSFiles       List[CSSEntry]    `json:"cssFiles"`
	CSSInline      List[InlineBlock] `json:"cssInline"`
	JSLibs         List[JSEntry]     `json:"jsLibs"`
	JSFooterLibs   List[JSEntry]     `json:"jsFooterLibs"`
	JSFiles        List[JSEntry]     `json:"jsFiles"`
	JSFooterFiles  List[JSEntry]     `json:"jsFooterFiles"`
	JSInline       List[InlineBlock] `json:"jsInline"`
	JSFooterInline List[InlineBlock] `json:"jsFooterInline"`
	HeaderData     []string          `json:"headerData,omitempty"`
	FooterData     []string          `json:"footerData,omitempty"`
	MetaTags       []MetaTag         `json:"metaTags,omitempty"`
	InlineSettings map[string]any    `json:"inlineSettings,omitempty"`
	InlineLabels   map[string]string `json:"inlineLabels,omitempty"`
	Document       Document          `json:"document"`
	Flags          Flags             `json:"flags"`
}

// Clone returns a deep copy of s. Inline settings are copied one level deep;
// nested values are treated as immutable once registered.
func (s State) Clone() State {
	out := s
	out.CSSLibs = s.CSSLibs.clone()
	out.CSSFiles = s.CSSFiles.clone()
	out.CSSInline = s.CSSInline.clone()
	out.JSLibs = s.JSLibs.clone()
	out.JSFooterLibs = s.JSFooterLibs.clone()
	out.JSFiles = s.JSFiles.clone()
	out.JSFooterFiles = s.JSFooterFiles.clone()
	out.JSInline = s.JSInline.clone()
	out.JSFooterInline = s.JSFooterInline.clone()
	out.HeaderData = append([]string(nil), s.HeaderData...)
	out.FooterData = append([]string(nil), s.FooterData...)
	out.MetaTags = append([]MetaTag(nil), s.MetaTags...)
	out.Document.InlineComments = append([]string(nil), s.Document.InlineComments...)
	if s.InlineSettings != nil {
		out.InlineSettings = make(map[string]any, len(s.InlineSettings))
		for k, v := range s.InlineSettings {
			out.InlineSettings[k] = v
		}
	}
	if s.InlineLabels != nil {
		out.InlineLabels = make(map[string]string, len(s.InlineLabels))
		for k, v := range s.InlineLabels {
			out.InlineLabels[k] = v
		}
	}
	return out
}
