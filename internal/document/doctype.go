// Package document computes the strings that frame a page: doctype, XML
// prologue and the opening html, head and body tags.
package document

import "strings"

// DocType is a configured document type.
type DocType string

// Supported document types.
const (
	HTML5       DocType = "html5"
	XHTMLTrans  DocType = "xhtml_trans"
	XHTMLFrames DocType = "xhtml_frames"
	XHTMLBasic  DocType = "xhtml_basic"
	XHTML11     DocType = "xhtml_11"
	XHTMLRDFa10 DocType = "xhtml+rdfa_10"
	DocTypeNone DocType = "none"
)

const (
	xmlPrologV10 = `<?xml version="1.0" encoding="utf-8"?>`
	xmlPrologV11 = `<?xml version="1.1" encoding="utf-8"?>`
)

var declarations = map[DocType]string{
	HTML5:       "<!DOCTYPE html>",
	XHTMLTrans:  `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">`,
	XHTMLFrames: `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Frameset//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-frameset.dtd">`,
	XHTMLBasic:  `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML Basic 1.0//EN" "http://www.w3.org/TR/xhtml-basic/xhtml-basic10.dtd">`,
	XHTML11:     `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`,
	XHTMLRDFa10: `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML+RDFa 1.0//EN" "http://www.w3.org/MarkUp/DTD/xhtml-rdfa-1.dtd">`,
	DocTypeNone: "",
}

// ParseDocType maps a configuration value to a DocType. Empty and unknown
// values yield HTML5.
func ParseDocType(s string) DocType {
	d := DocType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := declarations[d]; ok {
		return d
	}
	return HTML5
}

// Declaration returns the <!DOCTYPE> line, empty for DocTypeNone.
func (d DocType) Declaration() string {
	return declarations[d]
}

// IsXMLCompliant reports whether documents of this type are XML.
func (d DocType) IsXMLCompliant() bool {
	switch d {
	case XHTMLTrans, XHTMLFrames, XHTMLBasic, XHTML11, XHTMLRDFa10:
		return true
	}
	return false
}

// XMLPrologue returns the prologue for XML-compliant types.
func (d DocType) XMLPrologue() string {
	switch d {
	case XHTML11, XHTMLRDFa10:
		return xmlPrologV11
	case XHTMLTrans, XHTMLFrames, XHTMLBasic:
		return xmlPrologV10
	}
	return ""
}
