package scaffolding

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/frontpage/internal/tstree"
)

func newTestGenerator() *SiteGenerator {
	g := NewSiteGenerator()
	g.now = func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) }
	return g
}

func TestGenerate_Basic(t *testing.T) {
	dir := t.TempDir()
	paths, err := newTestGenerator().Generate(GenerateOptions{
		Template:  "basic",
		OutputDir: dir,
		SiteTitle: "My Site",
		Port:      3000,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, ".frontpage.yml"),
		filepath.Join(dir, "public", "css", "site.css"),
		filepath.Join(dir, "public", "favicon.ico"),
		filepath.Join(dir, "public", "js", "site.js"),
		filepath.Join(dir, "setup.yml"),
	}, paths)

	cfg, err := os.ReadFile(filepath.Join(dir, ".frontpage.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "generated 2025-03-04")
	assert.Contains(t, string(cfg), "port: 3000")
	assert.Contains(t, string(cfg), "public_dir: public")

	setup, err := tstree.LoadFile(filepath.Join(dir, "setup.yml"))
	require.NoError(t, err)
	assert.Equal(t, "My Site", setup.String("config.sitetitle"))
	assert.Equal(t, "PAGE", setup.String("page"))
	assert.Equal(t, "css/site.css", setup.String("page.includeCSS.site"))
	assert.Equal(t, "/about", setup.String("pages.about.path"))
}

func TestGenerate_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	setupFile := filepath.Join(dir, "setup.yml")
	require.NoError(t, os.WriteFile(setupFile, []byte("keep"), 0o644))

	g := newTestGenerator()
	_, err := g.Generate(GenerateOptions{Template: "minimal", OutputDir: dir, SiteTitle: "Site"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.NoFileExists(t, filepath.Join(dir, ".frontpage.yml"), "nothing is written on conflict")

	content, err := os.ReadFile(setupFile)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(content))

	_, err = g.Generate(GenerateOptions{Template: "minimal", OutputDir: dir, SiteTitle: "Site", Force: true})
	require.NoError(t, err)
	content, err = os.ReadFile(setupFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<h1>Site</h1>")
}

func TestGenerate_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts GenerateOptions
		want string
	}{
		{name: "unknown template", opts: GenerateOptions{Template: "blog", SiteTitle: "x"}, want: "not found"},
		{name: "empty title", opts: GenerateOptions{SiteTitle: " "}, want: "cannot be empty"},
		{name: "yaml breaking title", opts: GenerateOptions{SiteTitle: "a: b"}, want: "unsupported character"},
		{name: "markup in title", opts: GenerateOptions{SiteTitle: "a<b>"}, want: "unsupported character"},
		{name: "yaml indicator first", opts: GenerateOptions{SiteTitle: "- list"}, want: "must start with"},
		{name: "bad locale", opts: GenerateOptions{SiteTitle: "x", Locale: "not a locale!"}, want: "locale"},
		{name: "escaping public dir", opts: GenerateOptions{SiteTitle: "x", PublicDir: "../www"}, want: "relative path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.OutputDir = t.TempDir()
			_, err := newTestGenerator().Generate(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestListTemplates(t *testing.T) {
	infos := NewSiteGenerator().ListTemplates()
	require.Len(t, infos, 2)
	assert.Equal(t, "basic", infos[0].Name)
	assert.Equal(t, 5, infos[0].Files)
	assert.Equal(t, "minimal", infos[1].Name)
}
