package scaffolding

// SiteTemplate is a starter site: a set of files rendered with text/template.
type SiteTemplate struct {
	Name        string
	Description string
	// Files maps a slash-separated path relative to the site root to its
	// template text.
	Files map[string]string
}

// TemplateContext holds the values available to site templates.
type TemplateContext struct {
	SiteTitle string
	Locale    string
	PublicDir string
	Port      int
	Date      string
}

const configTemplate = `# frontpage configuration, generated {{.Date}}
server:
  host: localhost
  port: {{.Port}}
  environment: development

site:
  setup_file: setup.yml
  public_dir: {{.PublicDir}}
  temp_dir: _assets
  locale: {{.Locale}}
  watch: true

cache:
  backend: memory
  ttl: 24h

log:
  level: info
  format: text
`

const minimalSetup = `config.:
  sitetitle: {{.SiteTitle}}

page: PAGE
page.:
  10: TEXT
  10.:
    value: <h1>{{.SiteTitle}}</h1>
`

const basicSetup = `config.:
  sitetitle: {{.SiteTitle}}
  pageTitleSeparator: "|"
  pageTitleSeparator.:
    noTrimWrap: "| | |"
  concatenateCss: 1
  compressJs: 1

pages.:
  home.:
    path: /
    title: Home
  about.:
    path: /about
    title: About

page: PAGE
page.:
  shortcutIcon: favicon.ico
  bodyTagAdd: class="site"
  meta.:
    description: {{.SiteTitle}}
    viewport: width=device-width, initial-scale=1
  includeCSS.:
    site: css/site.css
  includeJSFooter.:
    site: js/site.js
    site.:
      defer: 1
  10: COA
  10.:
    10: TEXT
    10.:
      value: <header><a href="/">{{.SiteTitle}}</a></header>
    20: TEXT
    20.:
      field: title
      wrap: <main><h1>|</h1></main>
`

const siteCSS = `body {
  font-family: system-ui, sans-serif;
  margin: 0 auto;
  max-width: 48rem;
  padding: 1rem;
}
`

const siteJS = `document.documentElement.classList.add("js");
`

// GetBuiltinTemplates returns the starter sites shipped with frontpage.
func GetBuiltinTemplates() map[string]SiteTemplate {
	return map[string]SiteTemplate{
		"minimal": {
			Name:        "minimal",
			Description: "A single PAGE object with one TEXT content object",
			Files: map[string]string{
				".frontpage.yml": configTemplate,
				"setup.yml":      minimalSetup,
			},
		},
		"basic": {
			Name:        "basic",
			Description: "Page records, meta tags, a stylesheet and a footer script",
			Files: map[string]string{
				".frontpage.yml":              configTemplate,
				"setup.yml":                   basicSetup,
				"{{.PublicDir}}/css/site.css": siteCSS,
				"{{.PublicDir}}/js/site.js":   siteJS,
				"{{.PublicDir}}/favicon.ico":  "",
			},
		},
	}
}
