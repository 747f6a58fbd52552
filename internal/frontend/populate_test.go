package frontend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/conneroisu/frontpage/internal/assets"
	"github.com/conneroisu/frontpage/internal/cobj"
	"github.com/conneroisu/frontpage/internal/events"
	"github.com/conneroisu/frontpage/internal/placeholder"
	"github.com/conneroisu/frontpage/internal/tstree"
)

func populated(t *testing.T, f *fixture) assets.State {
	t.Helper()
	rc := f.renderContext(t)
	require.NoError(t, f.h.populate(context.Background(), rc))
	return rc.Assets.State()
}

func TestPopulate_IncludeCSS(t *testing.T) {
	f := newFixture(t, `
page: PAGE
page.:
  includeCSS.:
    a: foo.css
    a.:
      media: print
    missing: nope.css
    container.:
      media: screen
    cdn: https://cdn.example.com/x.css
    cdn.:
      external: 1
      alternate: 1
      title: Dark
      data-theme: dark
    hidden: foo.css?v=2
    hidden.:
      if.:
        isTrue: 0
`, map[string]string{"foo.css": "body{}"})

	css := populated(t, f).CSSFiles.Values()
	require.Len(t, css, 2)
	assert.Equal(t, "foo.css", css[0].Source)
	assert.Equal(t, "print", css[0].Media)
	assert.Equal(t, "stylesheet", css[0].Relation)
	assert.True(t, css[0].Compress)

	assert.Equal(t, "https://cdn.example.com/x.css", css[1].Source)
	assert.Equal(t, "alternate stylesheet", css[1].Relation)
	assert.Equal(t, "all", css[1].Media)
	assert.Equal(t, "Dark", css[1].Title)
	assert.Equal(t, assets.Attributes{{Name: "data-theme", Value: "dark"}}, css[1].ExtraAttributes)
}

func TestPopulate_AssetOrder(t *testing.T) {
	f := newFixture(t, `
page: PAGE
page.:
  10: TEXT
  10.:
    value: <main>body</main>
  includeCSSLibs.:
    lib: lib.css
  includeCSS.:
    a: a.css
    b: b.css
    b.:
      forceOnTop: 1
  includeJSLibs.:
    jquery: lib.js
  includeJS.:
    app: app.js
    app.:
      defer: 1
  includeJSFooterlibs.:
    footlib: footlib.js
  includeJSFooter.:
    foot: foot.js
  jsFooterInline.:
    10: TEXT
    10.:
      value: done();
  headerData.:
    10: TEXT
    10.:
      value: <!-- header -->
  footerData.:
    10: TEXT
    10.:
      value: <!-- footer -->
`, map[string]string{
		"lib.css": "", "a.css": "", "b.css": "",
		"lib.js": "", "app.js": "", "footlib.js": "", "foot.js": "",
	})

	body := f.get(t, "/", "aaaa").Body
	order := []string{
		`<link rel="stylesheet" href="lib.css" media="all">`,
		`<link rel="stylesheet" href="b.css" media="all">`,
		`<link rel="stylesheet" href="a.css" media="all">`,
		`<script src="lib.js"></script>`,
		`<script src="app.js" defer="defer"></script>`,
		"<!-- header -->",
		"</head>",
		"<main>body</main>",
		`<script src="footlib.js"></script>`,
		`<script src="foot.js"></script>`,
		"/*TS_inlineFooter*/\ndone();",
		"<!-- footer -->",
		"</body>",
	}
	last := -1
	for _, s := range order {
		i := indexOf(t, body, s)
		assert.Greater(t, i, last, "%q out of order", s)
		last = i
	}
}

func TestJSOptions_CrossOrigin(t *testing.T) {
	tests := []struct {
		name string
		src  string
		conf *tstree.Node
		want string
	}{
		{"external with integrity", "https://cdn.example.com/a.js", tstree.New().Set("integrity", "sha384-x"), "anonymous"},
		{"explicit value kept", "https://cdn.example.com/a.js", tstree.New().Set("integrity", "sha384-x").Set("crossorigin", "use-credentials"), "use-credentials"},
		{"external flag", "lib/a.js", tstree.New().Set("integrity", "sha384-x").Set("external", "1"), "anonymous"},
		{"local with integrity", "lib/a.js", tstree.New().Set("integrity", "sha384-x"), ""},
		{"external without integrity", "https://cdn.example.com/a.js", tstree.New(), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jsOptions(tt.src, tt.conf).CrossOrigin)
		})
	}
}

func TestJSOptions_ModuleType(t *testing.T) {
	o := jsOptions("js/app.mjs", tstree.New().Set("moduleType", "module").Set("data-app", "x"))
	assert.Equal(t, "module", o.ModuleType)
	require.Len(t, o.Attributes, 1)
	assert.Equal(t, "data-app", o.Attributes[0].Name)
}

func TestJSOptions_CrossOriginProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		host := rapid.StringMatching(`[a-z]{1,12}\.example`).Draw(t, "host")
		integrity := "sha384-" + rapid.StringMatching(`[A-Za-z0-9+/]{8,64}`).Draw(t, "integrity")
		src := "https://" + host + "/lib.js"

		conf := tstree.New().Set("integrity", integrity)
		if got := jsOptions(src, conf).CrossOrigin; got != "anonymous" {
			t.Fatalf("crossorigin = %q, want anonymous", got)
		}

		explicit := rapid.SampledFrom([]string{"anonymous", "use-credentials"}).Draw(t, "crossorigin")
		conf.Set("crossorigin", explicit)
		if got := jsOptions(src, conf).CrossOrigin; got != explicit {
			t.Fatalf("crossorigin = %q, want %q", got, explicit)
		}
	})
}

func TestPopulate_Title(t *testing.T) {
	tests := []struct {
		name  string
		apply func(rc *tstree.Node, data map[string]string)
		want  string
	}{
		{"site then page", func(*tstree.Node, map[string]string) {}, "Example: Home"},
		{"page first", func(c *tstree.Node, _ map[string]string) { c.Set("pageTitleFirst", "1") }, "Home: Example"},
		{"page title only", func(c *tstree.Node, _ map[string]string) { c.Set("noPageTitle", "1") }, "Home"},
		{"no page title", func(_ *tstree.Node, d map[string]string) { d["title"] = "" }, "Example"},
		{"wrapped separator", func(c *tstree.Node, _ map[string]string) {
			c.SetChild("pageTitleSeparator", tstree.NewValue("-").Set("noTrimWrap", "| | |"))
		}, "Example - Home"},
		{"page title stdWrap", func(c *tstree.Node, _ map[string]string) {
			c.SetChild("pageTitle", tstree.New().Set("case", "upper"))
		}, "Example: HOME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, basicSetup, nil)
			rc := f.renderContext(t)
			tt.apply(rc.Config, rc.Data)
			require.NoError(t, f.h.populateTitle(context.Background(), rc))
			assert.Equal(t, tt.want, rc.Title)
			assert.Equal(t, tt.want, rc.Assets.Title())
		})
	}

	t.Run("no title tag", func(t *testing.T) {
		f := newFixture(t, basicSetup+"  config.:\n    noPageTitle: 2\n", nil)
		body := f.get(t, "/", "aaaa").Body
		assert.NotContains(t, body, "<title>")
	})
}

func TestPopulate_Meta(t *testing.T) {
	f := newFixture(t, basicSetup+`
  meta.:
    description: A page
    description.:
      replace: 1
    og:title: Open
    og:title.:
      attribute: property
    refresh: 5
    refresh.:
      httpEquivalent: 1
    keywords.:
      value.:
        0: a
        1: b
    robots: index
    robots.:
      attribute: bogus
    author.:
      field: title
    empty: ""
`, nil)

	rc := f.renderContext(t)
	require.NoError(t, rc.Assets.SetMetaTag("name", "description", "old", false))
	require.NoError(t, f.h.populate(context.Background(), rc))

	assert.Equal(t, []assets.MetaTag{
		{Kind: "name", Name: "description", Content: "A page"},
		{Kind: "property", Name: "og:title", Content: "Open"},
		{Kind: "http-equiv", Name: "refresh", Content: "5"},
		{Kind: "name", Name: "keywords", Content: "a"},
		{Kind: "name", Name: "keywords", Content: "b"},
		{Kind: "name", Name: "author", Content: "Home"},
	}, rc.Assets.MetaTags())
}

func TestPopulate_HrefLang(t *testing.T) {
	setup := basicSetup + `
  config.:
    hreflang.:
      en: https://example.com/en/
      de: https://example.com/de/
      de.:
        lang: de-DE
`
	t.Run("alternates", func(t *testing.T) {
		f := newFixture(t, setup, nil)
		f.events.OnModifyHrefLangTags(func(_ context.Context, e *events.ModifyHrefLangTags) error {
			e.Set("x-default", "https://example.com/")
			return nil
		})
		assert.Equal(t, []string{
			`<link rel="alternate" hreflang="en" href="https://example.com/en/"/>`,
			`<link rel="alternate" hreflang="de-DE" href="https://example.com/de/"/>`,
			`<link rel="alternate" hreflang="x-default" href="https://example.com/"/>`,
		}, populated(t, f).HeaderData)
	})

	t.Run("single language emits nothing", func(t *testing.T) {
		f := newFixture(t, setup, nil)
		f.events.OnModifyHrefLangTags(func(_ context.Context, e *events.ModifyHrefLangTags) error {
			e.Remove("de-DE")
			return nil
		})
		assert.Empty(t, populated(t, f).HeaderData)
	})

	t.Run("listener error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		f := newFixture(t, setup, nil)
		f.events.OnModifyHrefLangTags(func(context.Context, *events.ModifyHrefLangTags) error { return boom })
		rc := f.renderContext(t)
		assert.ErrorIs(t, f.h.populate(context.Background(), rc), boom)

		_, err := f.h.Handle(context.Background(), &Request{Host: testHost, Path: "/"})
		assert.ErrorIs(t, err, boom)
	})
}

const inlineJSSetup = `
page: PAGE
page.:
  jsInline.:
    10: TEXT
    10.:
      value: var a = 1;
    20: USER_INT
    20.:
      userFunc: token
  jsFooterInline.:
    10: TEXT
    10.:
      value: done();
`

func TestPopulate_InlineJS(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		f := newFixture(t, inlineJSSetup, nil)
		state := populated(t, f)
		blocks := state.JSInline.Values()
		require.Len(t, blocks, 1)
		assert.Equal(t, "TS_inlineJS", blocks[0].Name)
		assert.True(t, strings.HasPrefix(blocks[0].Code, "var a = 1;"))
		assert.True(t, placeholder.Contains(blocks[0].Code))
		assert.Equal(t, "TS_inlineFooter", state.JSFooterInline.Values()[0].Name)
	})

	t.Run("external keeps markers inline", func(t *testing.T) {
		f := newFixture(t, inlineJSSetup+"  config.:\n    removeDefaultJS: external\n", nil)
		state := populated(t, f)

		blocks := state.JSInline.Values()
		require.Len(t, blocks, 1)
		assert.Equal(t, "TS_inlineJSint", blocks[0].Name)
		assert.Len(t, placeholder.IDs(blocks[0].Code), 1)
		assert.NotContains(t, blocks[0].Code, "var a")

		files := state.JSFiles.Values()
		require.Len(t, files, 1)
		assert.True(t, strings.HasPrefix(files[0].Source, "_assets/js/javascript_"), files[0].Source)
		data, err := os.ReadFile(filepath.Join(f.dir, filepath.FromSlash(files[0].Source)))
		require.NoError(t, err)
		assert.Equal(t, "var a = 1;", string(data))

		assert.Empty(t, state.JSFooterInline.Values())
		require.Len(t, state.JSFooterFiles.Values(), 1)
	})

	t.Run("markers resolve in rendered page", func(t *testing.T) {
		f := newFixture(t, inlineJSSetup+"  config.:\n    removeDefaultJS: external\n", nil)
		f.eval.Register("token", func(context.Context, cobj.Call) (string, error) {
			return "var token = 'x';", nil
		})
		body := f.get(t, "/", "aaaa").Body
		assert.Contains(t, body, "var token = 'x';")
		assert.NotContains(t, body, "INT_SCRIPT")
	})
}

func TestPopulate_PluginCSS(t *testing.T) {
	setup := `
plugin.:
  tx_news.:
    _CSS_DEFAULT_STYLE: ".news { color: red; }"
  tx_empty.:
    other: 1
page: PAGE
page.:
  cssInline.:
    10: TEXT
    10.:
      value: "h1 { margin: 0; }"
`
	t.Run("inline blocks", func(t *testing.T) {
		f := newFixture(t, setup, nil)
		blocks := populated(t, f).CSSInline.Values()
		require.Len(t, blocks, 2)
		assert.Equal(t, "InlineDefaultCss", blocks[0].Name)
		assert.Equal(t, "/* default styles for extension \"tx_news\" */\n.news { color: red; }", blocks[0].Code)
		assert.Equal(t, "InlinePageCss", blocks[1].Name)
	})

	t.Run("temp files", func(t *testing.T) {
		f := newFixture(t, setup+"  config.:\n    inlineStyle2TempFile: 1\n", nil)
		state := populated(t, f)
		assert.Empty(t, state.CSSInline.Values())
		files := state.CSSFiles.Values()
		require.Len(t, files, 2)
		assert.True(t, files[0].ExcludeFromConcat)
		assert.False(t, files[1].ExcludeFromConcat)
		for _, e := range files {
			assert.True(t, strings.HasPrefix(e.Source, "_assets/css/stylesheet_"), e.Source)
		}
	})
}

func TestPopulate_LanguageLabels(t *testing.T) {
	f := newFixture(t, `
page: PAGE
page.:
  inlineLanguageLabelFiles.:
    10: labels/en.yml
    10.:
      selectionPrefix: form.
      stripFromSelectionName: form.
    20: labels/missing.yml
  inlineLanguageLabel.:
    hello: Hi
`, map[string]string{"labels/en.yml": "form:\n  submit: Send\n  cancel: Cancel\nother:\n  x: y\n"})

	assert.Equal(t, map[string]string{
		"submit": "Send",
		"cancel": "Cancel",
		"hello":  "Hi",
	}, populated(t, f).InlineLabels)
}

func TestPopulate_DocumentFrame(t *testing.T) {
	f := newFixture(t, `
config.:
  doctype: xhtml_trans
  headerComment: built by frontpage
  baseURL: https://example.com/
  metaCharset: iso-8859-1
  compressJs: 1
  concatenateCss: 1
page: PAGE
page.:
  shortcutIcon: favicon.ico
  bodyTagAdd: class="home"
  inlineSettings.:
    api: /api
`, map[string]string{"favicon.ico": "x"})

	state := populated(t, f)
	d := state.Document
	assert.True(t, d.XHTML)
	assert.True(t, strings.HasPrefix(d.XMLPrologAndDocType, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, d.HTMLTag, `xml:lang="en-US"`)
	assert.Equal(t, "iso-8859-1", d.CharSet)
	assert.Equal(t, []string{"built by frontpage"}, d.InlineComments)
	assert.Equal(t, "https://example.com/", d.BaseURL)
	assert.Equal(t, "favicon.ico", d.FavIcon)
	assert.Equal(t, "image/vnd.microsoft.icon", d.IconMimeType)
	assert.Equal(t, `<body class="home">`, d.BodyContent)
	assert.True(t, state.Flags.CompressJS)
	assert.True(t, state.Flags.ConcatenateCSS)
	assert.False(t, state.Flags.CompressCSS)
	assert.Equal(t, map[string]any{"TS": map[string]any{"api": "/api"}}, state.InlineSettings)
}

func TestPopulate_MissingFaviconIsSkipped(t *testing.T) {
	f := newFixture(t, "page: PAGE\npage.:\n  shortcutIcon: nope.ico\n", nil)
	assert.Empty(t, populated(t, f).Document.FavIcon)
}
