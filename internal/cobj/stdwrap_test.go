package cobj

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/frontpage/internal/tstree"
)

func TestStdWrap(t *testing.T) {
	tests := []struct {
		name    string
		conf    string
		content string
		want    string
	}{
		{"nil conf", "", "x", "x"},
		{"field", "field: title", "", "About us"},
		{"field alternatives", "field: missing // subtitle", "", "Who we are"},
		{"data register", "data: register:section", "", "news"},
		{"trim and case", "trim: 1\ncase: upper", "  abc ", "ABC"},
		{"required empty", "required: 1\nwrap: <p>|</p>", "", ""},
		{"if false", "if.:\n  isTrue: \"\"", "x", ""},
		{"if true", "if.:\n  isTrue: 1", "x", "x"},
		{"htmlSpecialChars", "htmlSpecialChars: 1", `<a href="x">`, "&lt;a href=&#34;x&#34;&gt;"},
		{"wrap split char", "wrap: <b>#</b>\nwrap.:\n  splitChar: \"#\"", "x", "<b>x</b>"},
		{"noTrimWrap", "noTrimWrap: \"| a | b |\"", "x", " a x b "},
		{"dataWrap", "dataWrap: <h1 title=\"{field:subtitle}\">|</h1>", "x", `<h1 title="Who we are">x</h1>`},
		{"wrap order", "innerWrap: (|)\nwrap: \"[|]\"\nouterWrap: <|>", "x", "<[(x)]>"},
		{"ifEmpty", "ifEmpty: fallback", " ", "fallback"},
		{"override", "override: forced", "x", "forced"},
		{"override empty keeps content", "override: \"\"", "x", "x"},
		{"prepend and append", "prepend: TEXT\nprepend.:\n  value: a\nappend: TEXT\nappend.:\n  value: c", "b", "abc"},
		{"cObject", "cObject: TEXT\ncObject.:\n  value: from object", "x", "from object"},
		{"insertData", "insertData: 1", "Title: {field:title}", "Title: About us"},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := newRC(nil)
			rc.Registers["section"] = "news"
			var conf *tstree.Node
			if tt.conf != "" {
				conf = parse(t, tt.conf)
			}
			got, err := e.StdWrap(context.Background(), rc, tt.content, conf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckIf(t *testing.T) {
	tests := []struct {
		name string
		conf string
		want bool
	}{
		{"isTrue field", "isTrue.:\n  field: title", true},
		{"isTrue missing field", "isTrue.:\n  field: nope", false},
		{"isFalse", "isFalse: \"\"", true},
		{"isTrue zero", "isTrue: 0", false},
		{"isTrue one", "isTrue: 1", true},
		{"isFalse zero", "isFalse: 0", true},
		{"isFalse set", "isFalse: yes", false},
		{"isPositive", "isPositive: 3", true},
		{"isPositive zero", "isPositive: 0", false},
		{"equals", "value: a\nequals: a", true},
		{"equals mismatch", "value: a\nequals: b", false},
		{"isGreaterThan", "value: 3\nisGreaterThan: 5", true},
		{"isGreaterThan equal", "value: 5\nisGreaterThan: 5", false},
		{"isLessThan", "value: 5\nisLessThan: 3", true},
		{"isInList", "value: b\nisInList: a, b ,c", true},
		{"isInList miss", "value: d\nisInList: a,b,c", false},
		{"negate", "isTrue: 1\nnegate: 1", false},
		{"all must hold", "isTrue: 1\nisFalse: 1", false},
	}

	e := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := e.CheckIf(context.Background(), newRC(nil), parse(t, tt.conf))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "x", Wrap("x", "", ""))
	assert.Equal(t, "<p>x</p>", Wrap("x", " <p> | </p> ", ""))
	assert.Equal(t, "<p>x", Wrap("x", "<p>", ""))
}
