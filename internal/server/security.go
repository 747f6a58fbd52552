package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/conneroisu/frontpage/internal/config"
	"github.com/conneroisu/frontpage/internal/errors"
	"github.com/conneroisu/frontpage/internal/logging"
	"github.com/conneroisu/frontpage/internal/nonce"
)

// SecurityConfig holds the response headers applied to every request.
type SecurityConfig struct {
	CSP            *Policy
	HSTS           *HSTSConfig
	FrameOptions   string
	ReferrerPolicy string
	// EnableNonce creates a nonce per request, stores it on the request
	// context and allows it in the nonce directives of the policy.
	EnableNonce bool
	Logger      logging.Logger
}

// nonceDirectives receive 'nonce-<value>' when a nonce is active.
var nonceDirectives = map[string]bool{"script-src": true, "style-src": true}

// Policy is a Content-Security-Policy with directives kept in insertion
// order.
type Policy struct {
	directives []directive
	// UpgradeInsecureRequests adds the upgrade-insecure-requests directive.
	UpgradeInsecureRequests bool
	ReportURI               string
}

type directive struct {
	name    string
	sources []string
}

// Set replaces the sources of a directive, appending it when new.
func (p *Policy) Set(name string, sources ...string) {
	for i := range p.directives {
		if p.directives[i].name == name {
			p.directives[i].sources = sources
			return
		}
	}
	p.directives = append(p.directives, directive{name: name, sources: sources})
}

// Add appends sources to a directive.
func (p *Policy) Add(name string, sources ...string) {
	p.Set(name, append(p.Sources(name), sources...)...)
}

// Sources returns a copy of the sources of a directive.
func (p *Policy) Sources(name string) []string {
	for _, d := range p.directives {
		if d.name == name {
			return append([]string(nil), d.sources...)
		}
	}
	return nil
}

// Header renders the policy. The nonce is read with Value so advertising it
// does not mark it as used by the page.
func (p *Policy) Header(n *nonce.Nonce) string {
	parts := make([]string, 0, len(p.directives)+2)
	for _, d := range p.directives {
		sources := d.sources
		if n != nil && nonceDirectives[d.name] {
			sources = append(append([]string(nil), sources...), "'nonce-"+n.Value()+"'")
		}
		if len(sources) == 0 {
			continue
		}
		parts = append(parts, d.name+" "+strings.Join(sources, " "))
	}
	if p.UpgradeInsecureRequests {
		parts = append(parts, "upgrade-insecure-requests")
	}
	if p.ReportURI != "" {
		parts = append(parts, "report-uri "+p.ReportURI)
	}
	return strings.Join(parts, "; ")
}

// HSTSConfig holds HTTP Strict Transport Security configuration.
type HSTSConfig struct {
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

func (h *HSTSConfig) String() string {
	v := "max-age=" + strconv.Itoa(h.MaxAge)
	if h.IncludeSubDomains {
		v += "; includeSubDomains"
	}
	if h.Preload {
		v += "; preload"
	}
	return v
}

func basePolicy() *Policy {
	p := &Policy{}
	p.Set("default-src", "'self'")
	p.Set("script-src", "'self'")
	p.Set("style-src", "'self'")
	p.Set("img-src", "'self'", "data:")
	p.Set("font-src", "'self'")
	p.Set("object-src", "'none'")
	p.Set("frame-ancestors", "'self'")
	p.Set("base-uri", "'self'")
	p.Set("form-action", "'self'")
	return p
}

// SecurityConfigFor returns the preset for a server environment. Production
// forbids framing and preloads HSTS, development sends no HSTS, anything
// else gets the base preset.
func SecurityConfigFor(environment string) *SecurityConfig {
	sec := &SecurityConfig{
		CSP:            basePolicy(),
		HSTS:           &HSTSConfig{MaxAge: 365 * 24 * 60 * 60, IncludeSubDomains: true},
		FrameOptions:   "SAMEORIGIN",
		ReferrerPolicy: "strict-origin-when-cross-origin",
		EnableNonce:    true,
	}
	switch environment {
	case "production":
		sec.CSP.UpgradeInsecureRequests = true
		sec.CSP.Set("frame-ancestors", "'none'")
		sec.FrameOptions = "DENY"
		sec.HSTS.Preload = true
	case "development":
		sec.CSP.Add("img-src", "blob:")
		sec.HSTS = nil
	}
	return sec
}

// SecurityConfigFromAppConfig builds the preset for cfg's environment and
// applies the security section. Without a nonce inline scripts and styles
// are allowed.
func SecurityConfigFromAppConfig(cfg *config.Config, logger logging.Logger) *SecurityConfig {
	sec := SecurityConfigFor(cfg.Server.Environment)
	sec.EnableNonce = cfg.Security.EnableNonce
	if !sec.EnableNonce {
		for name := range nonceDirectives {
			sec.CSP.Add(name, "'unsafe-inline'")
		}
	}
	sec.CSP.ReportURI = cfg.Security.CSPReportURI
	sec.Logger = logger
	return sec
}

// SecurityMiddleware creates the request nonce and writes the security
// headers before calling next.
func SecurityMiddleware(sec *SecurityConfig) func(http.Handler) http.Handler {
	if sec == nil {
		sec = SecurityConfigFor("")
	}
	logger := sec.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var n *nonce.Nonce
			if sec.EnableNonce {
				var err error
				if n, err = nonce.New(); err != nil {
					logger.Error(r.Context(),
						errors.NewSecurityError("NONCE_GENERATION", "failed to generate nonce").WithCause(err),
						"nonce generation failed", "ip", clientIP(r))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				r = r.WithContext(nonce.WithContext(r.Context(), n))
			}

			h := w.Header()
			if sec.CSP != nil {
				h.Set("Content-Security-Policy", sec.CSP.Header(n))
			}
			if sec.HSTS != nil && r.TLS != nil {
				h.Set("Strict-Transport-Security", sec.HSTS.String())
			}
			if sec.FrameOptions != "" {
				h.Set("X-Frame-Options", sec.FrameOptions)
			}
			if sec.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", sec.ReferrerPolicy)
			}
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
