package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	appLog "vhsite/internal/log"
)

// embeddedStatic holds the site UI served at /.
//
//go:embed all:static
var embeddedStatic embed.FS

// staticFileServer serves the embedded UI. /api paths that reach it mean
// no API route matched, so they get a JSON 404 rather than HTML.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			writeError(w, http.StatusNotFound, errNotFound, "no such endpoint")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
