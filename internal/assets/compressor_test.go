package assets

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/frontpage/internal/placeholder"
)

func writePublic(t *testing.T, dir, rel, content string) {
	t.Helper()
	target := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte(content), 0o644))
}

func TestCompressor_ConcatenatesAdjacentFiles(t *testing.T) {
	dir := t.TempDir()
	writePublic(t, dir, "css/a.css", "a{}")
	writePublic(t, dir, "css/b.css", "b{}")
	writePublic(t, dir, "css/p.css", "p{}")

	var st State
	st.CSSFiles.Add("css/a.css", newCSSEntry("css/a.css", CSSFileOptions{}), false)
	st.CSSFiles.Add("css/b.css", newCSSEntry("css/b.css", CSSFileOptions{}), false)
	st.CSSFiles.Add("css/p.css", newCSSEntry("css/p.css", CSSFileOptions{Media: "print"}), false)
	st.CSSFiles.Add("https://cdn/x.css", newCSSEntry("https://cdn/x.css", CSSFileOptions{}), false)
	st.Flags.ConcatenateCSS = true

	c := NewCompressor(dir, "temp", nil)
	out, err := c.Process(context.Background(), st)
	require.NoError(t, err)

	files := out.CSSFiles.Values()
	require.Len(t, files, 3)
	assert.True(t, strings.HasPrefix(files[0].Source, "temp/merged-"))
	assert.Equal(t, "css/p.css", files[1].Source)
	assert.Equal(t, "https://cdn/x.css", files[2].Source)

	merged, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(files[0].Source)))
	require.NoError(t, err)
	assert.Equal(t, "a{}\nb{}\n", string(merged))

	assert.Equal(t, 4, st.CSSFiles.Len(), "input state is not modified")
}

func TestCompressor_ModuleScriptsStayApart(t *testing.T) {
	dir := t.TempDir()
	writePublic(t, dir, "js/a.js", "var a=1;")
	writePublic(t, dir, "js/b.js", "var b=2;")
	writePublic(t, dir, "js/app.mjs", "export const c=3;")
	writePublic(t, dir, "js/d.js", "var d=4;")

	var st State
	for _, e := range []JSEntry{
		newJSEntry("", "js/a.js", JSFileOptions{}),
		newJSEntry("", "js/b.js", JSFileOptions{}),
		newJSEntry("", "js/app.mjs", JSFileOptions{ModuleType: "module"}),
		newJSEntry("", "js/d.js", JSFileOptions{}),
	} {
		st.JSFiles.Add(e.Source, e, false)
	}
	st.Flags.ConcatenateJS = true

	out, err := NewCompressor(dir, "temp", nil).Process(context.Background(), st)
	require.NoError(t, err)

	files := out.JSFiles.Values()
	require.Len(t, files, 3)
	assert.True(t, strings.HasPrefix(files[0].Source, "temp/merged-"))
	assert.Equal(t, "js/app.mjs", files[1].Source)
	assert.Equal(t, "module", files[1].ScriptType())
	assert.Equal(t, "js/d.js", files[2].Source)
}

func TestCompressor_CompressesAndGzips(t *testing.T) {
	dir := t.TempDir()
	writePublic(t, dir, "js/app.js", "// header\nvar a = 1;\n\n/* block */\nvar b = 2;\n")

	var st State
	st.JSFiles.Add("js/app.js", newJSEntry("", "js/app.js", JSFileOptions{Compress: true}), false)
	st.JSFiles.Add("js/missing.js", newJSEntry("", "js/missing.js", JSFileOptions{Compress: true}), false)
	st.Flags.CompressJS = true

	out, err := NewCompressor(dir, "temp", nil).Process(context.Background(), st)
	require.NoError(t, err)

	files := out.JSFiles.Values()
	require.Len(t, files, 2)
	assert.True(t, strings.HasPrefix(files[0].Source, "temp/compressed/app-"))
	assert.Equal(t, "js/missing.js", files[1].Source, "unreadable files are left untouched")

	minified, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(files[0].Source)))
	require.NoError(t, err)
	assert.NotContains(t, string(minified), "header")
	assert.NotContains(t, string(minified), "block")
	assert.Contains(t, string(minified), "a=1")
	assert.Contains(t, string(minified), "b=2")

	gz, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(files[0].Source)) + ".gz")
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, minified, plain)
}

func TestCompressor_InlineBlocksKeepMarkers(t *testing.T) {
	code := "/* c */\nvar a = 1;\n" + placeholder.Marker("abc") + "\n\n  var b = 2;"

	var st State
	st.JSInline.Add("x", InlineBlock{Name: "x", Code: code, Compress: true}, false)
	st.Flags.CompressJS = true

	out, err := NewCompressor(t.TempDir(), "temp", nil).Process(context.Background(), st)
	require.NoError(t, err)

	got := out.JSInline.Items["x"].Code
	assert.Equal(t, []string{"abc"}, placeholder.IDs(got))
	assert.NotContains(t, got, "/* c */")
	assert.Contains(t, got, "b=2")
}

func TestMinifyCSS(t *testing.T) {
	in := "/* theme */\nbody {\n  color : red;\n}\n\na , b { margin: 0 }"
	assert.Equal(t, "body{color:red}a,b{margin:0}", MinifyCSS(in))

	out := MinifyCSS("nav :first-child {\n  color: red;\n}")
	assert.Contains(t, out, "nav :first-child", "descendant combinator is kept")

	out = MinifyCSS(`a::after { content: "/* not a comment */"; }`)
	assert.Contains(t, out, "/* not a comment */")
}

func TestMinifyJS(t *testing.T) {
	out := MinifyJS("var a = \"/*\";\nvar b = 1;\nvar c = \"*/\";")
	assert.Contains(t, out, "/*", "comment-like string literals survive")
	assert.Contains(t, out, "*/")
	assert.Contains(t, out, "b=1")

	out = MinifyJS("var url = \"http://example.com\"; // trailing\nf(url);")
	assert.Contains(t, out, "http://example.com")
	assert.NotContains(t, out, "trailing")

	broken := "if (a {"
	assert.Equal(t, broken, MinifyJS(broken), "unparsable code is left as is")
	assert.Equal(t, "\n", MinifyJS("\n"))
}

func TestTempFileWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewTempFileWriter(dir, "/temp/")

	p1, err := w.WriteCSS("body{}")
	require.NoError(t, err)
	p2, err := w.WriteCSS("body{}")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.True(t, strings.HasPrefix(p1, "temp/css/stylesheet_"))
	assert.True(t, strings.HasSuffix(p1, ".css"))

	js, err := w.WriteJS("x()")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(js, "temp/js/javascript_"))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(js)))
	require.NoError(t, err)
	assert.Equal(t, "x()", string(data))
}
