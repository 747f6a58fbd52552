// Package scaffolding writes starter sites for frontpage init.
package scaffolding

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/conneroisu/frontpage/internal/document"
)

// SiteGenerator renders site templates into a directory.
type SiteGenerator struct {
	templates map[string]SiteTemplate
	now       func() time.Time
}

// GenerateOptions holds options for site generation
type GenerateOptions struct {
	Template  string
	OutputDir string
	SiteTitle string
	Locale    string
	PublicDir string
	Port      int
	// Force overwrites existing files.
	Force bool
}

// NewSiteGenerator creates a generator with the built-in templates.
func NewSiteGenerator() *SiteGenerator {
	return &SiteGenerator{
		templates: GetBuiltinTemplates(),
		now:       time.Now,
	}
}

// Generate renders the chosen template into opts.OutputDir and returns the
// written paths in order. Nothing is written when any target already exists
// and Force is not set.
func (g *SiteGenerator) Generate(opts GenerateOptions) ([]string, error) {
	if opts.Template == "" {
		opts.Template = "basic"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.PublicDir == "" {
		opts.PublicDir = "public"
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	if opts.Port == 0 {
		opts.Port = 8080
	}

	tmpl, exists := g.templates[opts.Template]
	if !exists {
		return nil, fmt.Errorf("template '%s' not found", opts.Template)
	}
	if err := ValidateSiteTitle(opts.SiteTitle); err != nil {
		return nil, err
	}
	if _, err := document.ParseLocale(opts.Locale); err != nil {
		return nil, err
	}
	if filepath.IsAbs(opts.PublicDir) || strings.Contains(filepath.ToSlash(opts.PublicDir), "..") {
		return nil, fmt.Errorf("public dir must be a relative path inside the site: %s", opts.PublicDir)
	}

	ctx := TemplateContext{
		SiteTitle: opts.SiteTitle,
		Locale:    opts.Locale,
		PublicDir: filepath.ToSlash(filepath.Clean(opts.PublicDir)),
		Port:      opts.Port,
		Date:      g.now().Format("2006-01-02"),
	}

	// Render everything first so a template error leaves no partial site.
	rendered := make(map[string][]byte, len(tmpl.Files))
	paths := make([]string, 0, len(tmpl.Files))
	for name, text := range tmpl.Files {
		rel, err := execute(name, ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to render path %s: %w", name, err)
		}
		content, err := execute(text, ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", rel, err)
		}
		path := filepath.Join(opts.OutputDir, filepath.FromSlash(string(rel)))
		rendered[path] = content
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if !opts.Force {
		for _, path := range paths {
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
	}

	for _, path := range paths {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(path, rendered[path], 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return paths, nil
}

// ListTemplates returns available templates sorted by name.
func (g *SiteGenerator) ListTemplates() []TemplateInfo {
	templates := make([]TemplateInfo, 0, len(g.templates))
	for name, tmpl := range g.templates {
		templates = append(templates, TemplateInfo{
			Name:        name,
			Description: tmpl.Description,
			Files:       len(tmpl.Files),
		})
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates
}

// TemplateInfo holds basic template information
type TemplateInfo struct {
	Name        string
	Description string
	Files       int
}

func execute(text string, ctx TemplateContext) ([]byte, error) {
	tmpl, err := template.New("site").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// ValidateSiteTitle accepts titles that can be written into the setup YAML
// and the page markup without escaping.
func ValidateSiteTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("site title cannot be empty")
	}
	if len(title) > 100 {
		return fmt.Errorf("site title is too long (max 100 characters)")
	}
	for i, r := range title {
		if i == 0 && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Errorf("site title must start with a letter or digit")
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" .,!?-_()", r) {
			continue
		}
		return fmt.Errorf("site title contains unsupported character %q", r)
	}
	return nil
}
