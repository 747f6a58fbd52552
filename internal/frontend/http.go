package frontend

import (
	"io"
	"net/http"
	"strconv"

	"github.com/conneroisu/frontpage/internal/nonce"
)

// ServeHTTP renders the page at the request path. The page type is taken
// from the "type" query parameter and the nonce from the request context
// when a middleware put one there.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	typeNum := 0
	if t := r.URL.Query().Get("type"); t != "" {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			h.errorPage(w, r, http.StatusBadRequest, err)
			return
		}
		typeNum = n
	}

	resp, err := h.Handle(r.Context(), &Request{
		Host:    r.Host,
		Path:    r.URL.Path,
		TypeNum: typeNum,
		Nonce:   nonce.FromContext(r.Context()),
		HTTP:    r,
	})
	if err != nil {
		h.errorPage(w, r, StatusFor(err), err)
		return
	}

	for name, values := range resp.Header {
		w.Header()[name] = values
	}
	if resp.FromCache {
		w.Header().Set("X-Frontpage-Cache", "hit")
	} else {
		w.Header().Set("X-Frontpage-Cache", "miss")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, resp.Body)
	}
}
