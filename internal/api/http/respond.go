package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tabletoplab/ratings/internal/ingest"
	"github.com/tabletoplab/ratings/internal/rating"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the typed store/service failures the way the API
// documents them: 404 for missing entities, 409 for duplicate ratings.
// Anything else is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rating.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, rating.ErrConflict):
		writeDetail(w, http.StatusConflict, err.Error())
	default:
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// scoreParam extracts and range-checks the rating query parameter. The
// bulk-load schema enforces 1-10; the mutation endpoints enforce the same
// bound here so the two ingestion paths agree.
func scoreParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("rating")
	if raw == "" {
		return 0, errors.New("rating query parameter required")
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("rating must be an integer")
	}
	if score < ingest.MinScore || score > ingest.MaxScore {
		return 0, fmt.Errorf("rating must be between %d and %d", ingest.MinScore, ingest.MaxScore)
	}
	return score, nil
}
