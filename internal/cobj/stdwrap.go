package cobj

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/frontpage/internal/page"
	"github.com/conneroisu/frontpage/internal/tstree"
)

var insertPattern = regexp.MustCompile(`\{([a-zA-Z]+):([^{}]*)\}`)

// StdWrap applies the stdWrap properties of conf to content in their fixed
// order. A nil conf returns content unchanged.
func (e *Evaluator) StdWrap(ctx context.Context, rc *page.RenderContext, content string, conf *tstree.Node) (string, error) {
	if conf == nil || !conf.IsTree() {
		return content, nil
	}

	if conf.Has("data") {
		content = GetData(rc, conf.String("data"))
	}
	if conf.Has("field") {
		content = GetData(rc, fieldAlternatives(conf.String("field")))
	}
	if c := conf.Child("cObject"); c != nil && c.HasValue() {
		out, err := e.RenderSingle(ctx, rc, c.Value(), c)
		if err != nil {
			return "", err
		}
		content = out
	}
	if c := conf.Child("override"); c != nil {
		v, err := e.StdWrap(ctx, rc, c.Value(), c)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(v) != "" {
			content = v
		}
	}
	if c := conf.Child("ifEmpty"); c != nil && strings.TrimSpace(content) == "" {
		v, err := e.StdWrap(ctx, rc, c.Value(), c)
		if err != nil {
			return "", err
		}
		content = v
	}
	if conf.Bool("trim") {
		content = strings.TrimSpace(content)
	}
	if conf.Bool("required") && content == "" {
		return "", nil
	}
	if c := conf.Child("if"); c != nil {
		ok, err := e.CheckIf(ctx, rc, c)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
	}
	switch strings.ToLower(conf.String("case")) {
	case "upper":
		content = strings.ToUpper(content)
	case "lower":
		content = strings.ToLower(content)
	}
	if conf.Bool("htmlSpecialChars") {
		content = html.EscapeString(content)
	}
	content = Wrap(content, conf.String("innerWrap"), "")
	for _, key := range []string{"preCObject", "postCObject"} {
		c := conf.Child(key)
		if c == nil || !c.HasValue() {
			continue
		}
		out, err := e.RenderSingle(ctx, rc, c.Value(), c)
		if err != nil {
			return "", err
		}
		if key == "preCObject" {
			content = out + content
		} else {
			content += out
		}
	}
	content = Wrap(content, conf.String("wrap"), conf.String("wrap.splitChar"))
	if w := conf.String("noTrimWrap"); w != "" {
		content = NoTrimWrap(content, w, conf.String("noTrimWrap.splitChar"))
	}
	if w := conf.String("dataWrap"); w != "" {
		content = Wrap(content, InsertData(rc, w), "")
	}
	if c := conf.Child("prepend"); c != nil && c.HasValue() {
		out, err := e.RenderSingle(ctx, rc, c.Value(), c)
		if err != nil {
			return "", err
		}
		content = out + content
	}
	if c := conf.Child("append"); c != nil && c.HasValue() {
		out, err := e.RenderSingle(ctx, rc, c.Value(), c)
		if err != nil {
			return "", err
		}
		content += out
	}
	content = Wrap(content, conf.String("outerWrap"), "")
	if conf.Bool("insertData") {
		content = InsertData(rc, content)
	}
	return content, nil
}

// Wrap places content between the two halves of wrap, split on splitChar
// (default "|"). Both halves are trimmed. An empty wrap returns content.
func Wrap(content, wrap, splitChar string) string {
	if wrap == "" {
		return content
	}
	if splitChar == "" {
		splitChar = "|"
	}
	before, after, _ := strings.Cut(wrap, splitChar)
	return strings.TrimSpace(before) + content + strings.TrimSpace(after)
}

// NoTrimWrap is Wrap without trimming. The wrap starts and ends with the
// split character: "| before | after |".
func NoTrimWrap(content, wrap, splitChar string) string {
	if splitChar == "" {
		splitChar = "|"
	}
	parts := strings.Split(wrap, splitChar)
	if len(parts) < 3 {
		return content
	}
	return parts[1] + content + parts[2]
}

// GetData resolves a data expression such as "field:title // field:subtitle".
// The first non-empty alternative wins.
func GetData(rc *page.RenderContext, expr string) string {
	for _, alt := range strings.Split(expr, "//") {
		kind, key, ok := strings.Cut(strings.TrimSpace(alt), ":")
		if !ok {
			continue
		}
		var v string
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "field":
			v = lookup(rc, func(rc *page.RenderContext) map[string]string { return rc.Data }, key)
		case "register":
			v = lookup(rc, func(rc *page.RenderContext) map[string]string { return rc.Registers }, key)
		case "path":
			if rc != nil {
				v = rc.Path
			}
		case "sitelanguage":
			if rc != nil && strings.TrimSpace(key) == "locale" {
				v = rc.Locale.Name()
			}
		}
		if v != "" {
			return v
		}
	}
	return ""
}

// InsertData replaces {type:key} expressions in text with GetData results.
func InsertData(rc *page.RenderContext, text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	return insertPattern.ReplaceAllStringFunc(text, func(m string) string {
		return GetData(rc, m[1:len(m)-1])
	})
}

func fieldAlternatives(fields string) string {
	alts := strings.Split(fields, "//")
	for i, f := range alts {
		alts[i] = "field:" + strings.TrimSpace(f)
	}
	return strings.Join(alts, "//")
}

func lookup(rc *page.RenderContext, pick func(*page.RenderContext) map[string]string, key string) string {
	if rc == nil {
		return ""
	}
	return pick(rc)[strings.TrimSpace(key)]
}

// CheckIf evaluates an "if" configuration. All given conditions must hold;
// negate inverts the result.
func (e *Evaluator) CheckIf(ctx context.Context, rc *page.RenderContext, conf *tstree.Node) (bool, error) {
	if conf == nil || !conf.IsTree() {
		return true, nil
	}
	get := func(key string) (string, bool, error) {
		c := conf.Child(key)
		if c == nil {
			return "", false, nil
		}
		v, err := e.StdWrap(ctx, rc, c.Value(), c)
		return v, true, err
	}

	flag := true
	if v, ok, err := get("isTrue"); err != nil {
		return false, err
	} else if ok && !tstree.Truthy(v) {
		flag = false
	}
	if v, ok, err := get("isFalse"); err != nil {
		return false, err
	} else if ok && tstree.Truthy(v) {
		flag = false
	}
	if v, ok, err := get("isPositive"); err != nil {
		return false, err
	} else if ok && toInt(v) < 1 {
		flag = false
	}

	value, _, err := get("value")
	if err != nil {
		return false, err
	}
	if v, ok, err := get("isGreaterThan"); err != nil {
		return false, err
	} else if ok && toFloat(v) <= toFloat(value) {
		flag = false
	}
	if v, ok, err := get("isLessThan"); err != nil {
		return false, err
	} else if ok && toFloat(v) >= toFloat(value) {
		flag = false
	}
	if v, ok, err := get("equals"); err != nil {
		return false, err
	} else if ok && v != value {
		flag = false
	}
	if v, ok, err := get("isInList"); err != nil {
		return false, err
	} else if ok && !inList(v, value) {
		flag = false
	}

	if conf.Bool("negate") {
		flag = !flag
	}
	return flag, nil
}

func inList(list, value string) bool {
	for _, item := range strings.Split(list, ",") {
		if strings.TrimSpace(item) == strings.TrimSpace(value) {
			return true
		}
	}
	return false
}

func toInt(v string) int {
	i, _ := strconv.Atoi(strings.TrimSpace(v))
	return i
}

func toFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
