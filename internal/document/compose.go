package document

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// XHTMLNamespace is the namespace added to XML documents.
const XHTMLNamespace = "http://www.w3.org/1999/xhtml"

// Tags is the computed frame of a document.
type Tags struct {
	// XMLPrologue is empty when no prologue is emitted.
	XMLPrologue string
	// XMLPrologAndDocType joins the prologue and the doctype declaration.
	XMLPrologAndDocType string
	// XMLDocument is false when the output is not an XML document.
	XMLDocument bool
	// XHTML selects self-closing tag syntax.
	XHTML bool
	// Automatic are the computed <html> attributes before overrides.
	Automatic assets.Attributes
	// HTMLTag is the opening <html> tag before htmlTag_stdWrap.
	HTMLTag string
}

// Compose computes the document tags from the config tree. It is a pure
// function of its arguments.
//
// Recognized config keys: xmlprologue, namespaces, htmlTag.attributes and
// htmlTag_setParams.
func Compose(config *tstree.Node, locale Locale, doctype DocType) Tags {
	var t Tags
	t.XMLDocument = true
	t.XHTML = doctype.IsXMLCompliant()

	var parts []string
	switch prologue := config.String("xmlprologue"); prologue {
	case "none":
		t.XMLDocument = false
	case "", "xml_10", "xml_11":
		if doctype.IsXMLCompliant() {
			t.XMLPrologue = doctype.XMLPrologue()
			parts = append(parts, t.XMLPrologue)
		} else {
			t.XMLDocument = false
		}
	default:
		t.XMLPrologue = prologue
		parts = append(parts, prologue)
	}
	if decl := doctype.Declaration(); decl != "" {
		parts = append(parts, decl)
	}
	t.XMLPrologAndDocType = strings.Join(parts, "\n")

	t.Automatic = automaticAttributes(config, locale, doctype, t.XMLDocument)
	t.HTMLTag = htmlTag(config, t.Automatic)
	return t
}

func automaticAttributes(config *tstree.Node, locale Locale, doctype DocType, xmlDocument bool) assets.Attributes {
	var attrs assets.Attributes
	if doctype.IsXMLCompliant() || (doctype == HTML5 && xmlDocument) {
		attrs = append(attrs, assets.Attribute{Name: "xmlns", Value: XHTMLNamespace})
		ns := config.Child("namespaces")
		for _, prefix := range ns.Keys() {
			attrs = append(attrs, assets.Attribute{Name: "xmlns:" + prefix, Value: ns.String(prefix)})
		}
	}
	langKey := "lang"
	if doctype.IsXMLCompliant() {
		langKey = "xml:lang"
	}
	if name := locale.Name(); name != "" {
		attrs = append(attrs, assets.Attribute{Name: langKey, Value: name})
	}
	if locale.IsRightToLeft() {
		attrs = append(attrs, assets.Attribute{Name: "dir", Value: "rtl"})
	}
	return attrs
}

// htmlTag applies the attribute overrides. An explicit attribute map wins
// over automatic attributes of the same name and the remaining automatic ones
// are kept. Without a map, htmlTag_setParams replaces all attributes, and
// "none" removes them.
func htmlTag(config *tstree.Node, automatic assets.Attributes) string {
	var attrString string
	explicit := config.Get("htmlTag.attributes")
	setParams := config.Child("htmlTag_setParams")
	switch {
	case explicit.IsTree():
		var b strings.Builder
		remaining := make(assets.Attributes, 0, len(automatic))
		for _, a := range automatic {
			if !explicit.Has(a.Name) {
				remaining = append(remaining, a)
			}
		}
		b.WriteString(serialize(remaining))
		for _, name := range explicit.Keys() {
			b.WriteString(" ")
			b.WriteString(html.EscapeString(name))
			if v := explicit.String(name); v != "" {
				b.WriteString(`="` + html.EscapeString(v) + `"`)
			}
		}
		attrString = strings.TrimLeft(b.String(), " ")
	case setParams.HasValue() && setParams.Value() == "none":
		attrString = ""
	case setParams.HasValue():
		attrString = setParams.Value()
	default:
		attrString = strings.TrimLeft(serialize(automatic), " ")
	}
	if attrString == "" {
		return "<html>"
	}
	return "<html " + attrString + ">"
}

// serialize renders attributes with a leading space each. Empty values are
// omitted.
func serialize(attrs assets.Attributes) string {
	var b strings.Builder
	for _, a := range attrs {
		if a.Value == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteString(`"`)
	}
	return b.String()
}

// HeadTag returns the opening head tag configured on the page, before its
// stdWrap.
func HeadTag(pageSetup *tstree.Node) string {
	return strings.TrimSpace(pageSetup.StringDefault("headTag", "<head>"))
}

// BodyTag returns the opening body tag with bodyTagAdd inserted before the
// closing bracket.
func BodyTag(pageSetup *tstree.Node) string {
	tag := strings.TrimSpace(pageSetup.StringDefault("bodyTag", "<body>"))
	if add := strings.TrimSpace(pageSetup.String("bodyTagAdd")); add != "" {
		tag = strings.TrimSuffix(tag, ">") + " " + add + ">"
	}
	return tag
}
