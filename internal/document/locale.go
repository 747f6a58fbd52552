package document

import (
	"fmt"

	"golang.org/x/text/language"
)

// Locale is the language of the rendered site.
type Locale struct {
	tag language.Tag
	rtl bool
}

var (
	rtlScripts = scriptSet("Arab", "Hebr", "Thaa", "Syrc", "Nkoo", "Adlm", "Rohg", "Mand", "Samr")
	rtlBases   = baseSet("ar", "he", "fa", "ur", "yi", "dv", "ps", "ckb", "sd", "ug")
)

// ParseLocale parses a BCP 47 tag or a POSIX style name such as "de_DE".
func ParseLocale(name string) (Locale, error) {
	if name == "" {
		return Locale{tag: language.Und}, nil
	}
	tag, err := language.Parse(name)
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", name, err)
	}
	return NewLocale(tag), nil
}

// MustParseLocale is ParseLocale for constant input.
func MustParseLocale(name string) Locale {
	l, err := ParseLocale(name)
	if err != nil {
		panic(err)
	}
	return l
}

// NewLocale wraps tag and derives its text direction.
func NewLocale(tag language.Tag) Locale {
	rtl := false
	if script, conf := tag.Script(); conf != language.No {
		_, rtl = rtlScripts[script]
	}
	if !rtl {
		base, _ := tag.Base()
		_, rtl = rtlBases[base]
	}
	return Locale{tag: tag, rtl: rtl}
}

// Name returns the canonical tag, e.g. "en-US", or "" for an undefined locale.
func (l Locale) Name() string {
	if l.tag == language.Und {
		return ""
	}
	return l.tag.String()
}

// Tag returns the underlying language tag.
func (l Locale) Tag() language.Tag { return l.tag }

// IsRightToLeft reports whether the locale is written right to left.
func (l Locale) IsRightToLeft() bool { return l.rtl }

func scriptSet(codes ...string) map[language.Script]struct{} {
	m := make(map[language.Script]struct{}, len(codes))
	for _, c := range codes {
		m[language.MustParseScript(c)] = struct{}{}
	}
	return m
}

func baseSet(codes ...string) map[language.Base]struct{} {
	m := make(map[language.Base]struct{}, len(codes))
	for _, c := range codes {
		m[language.MustParseBase(c)] = struct{}{}
	}
	return m
}
