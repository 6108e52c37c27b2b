// Package routing provides the mux for the server's debug listener. The
// HTTP/1.0 data path never passes through net/http; this mux only fronts
// observability endpoints.
package routing

import (
	"net/http"
	"path"
	"strings"
)

// NormalizedServeMux is an http.ServeMux that collapses duplicate slashes
// in request paths before routing, so scrapers hitting //metrics and
// /metrics land on the same handler.
type NormalizedServeMux struct {
	*http.ServeMux
}

// NewNormalizedServeMux creates an empty normalized mux.
func NewNormalizedServeMux() *NormalizedServeMux {
	return &NormalizedServeMux{http.NewServeMux()}
}

// ServeHTTP implements net/http.Handler.ServeHTTP.
func (nm *NormalizedServeMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.URL.Path, "//") {
		r.URL.Path = path.Clean(r.URL.Path)
	}
	nm.ServeMux.ServeHTTP(w, r)
}
