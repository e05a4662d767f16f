package http

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tabletoplab/ratings/internal/storage"
)

// MountStatic serves the deployment's static assets and favicon from the
// filesystem blob store.
func MountStatic(r chi.Router, bs storage.BlobStore) {
	serve := func(w http.ResponseWriter, key string) {
		rc, err := bs.Get(key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(filepath.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	}

	r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		serve(w, key)
	})
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		serve(w, "favicon.ico")
	})
}
