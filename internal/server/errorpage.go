package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/conneroisu/frontpage/internal/nonce"
)

// errorPage renders a minimal standalone HTML error document. The page is
// never cached and carries no inline script or style.
func errorPage(status int, detail string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		title := templ.EscapeString(fmt.Sprintf("%d %s", status, http.StatusText(status)))
		_, err := fmt.Fprintf(w,
			"<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head>"+
				"<body><h1>%s</h1>", title, title)
		if err != nil {
			return err
		}
		if detail != "" {
			if _, err := fmt.Fprintf(w, "<p>%s</p>", templ.EscapeString(detail)); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</body></html>")
		return err
	})
}

// writeErrorPage is the frontend error hook. Details of internal errors are
// only shown outside production.
func (s *Server) writeErrorPage(w http.ResponseWriter, r *http.Request, status int, err error) {
	detail := ""
	if err != nil && !s.config.Server.IsProduction() {
		detail = err.Error()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "request failed", "path", r.URL.Path, "status", status)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	ctx := r.Context()
	if n := nonce.FromContext(ctx); n != nil {
		ctx = templ.WithNonce(ctx, n.Value())
	}
	if err := errorPage(status, detail).Render(ctx, w); err != nil {
		s.logger.Warn(ctx, err, "failed to write error page")
	}
}
