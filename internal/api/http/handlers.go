package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabletoplab/ratings/internal/metrics"
	"github.com/tabletoplab/ratings/internal/rating"
)

// Mount wires the ratings API under /api using the service's vocabulary
// for route segments. guard, when non-nil, wraps the three mutation
// routes (auth+rbac); reads stay public.
func Mount(r chi.Router, svc *rating.Service, guard func(http.Handler) http.Handler) {
	v := svc.Vocab()
	r.Route("/api", func(ar chi.Router) {
		ar.Get("/"+v.SubjectsPath+"/", ListSubjectsHandler(svc))
		ar.Get("/"+v.SubjectsPath+"/{name}", GetSubjectHandler(svc))
		ar.Get("/"+v.ItemsPath+"/", ListItemsHandler(svc))
		ar.Get("/"+v.ItemsPath+"/{item}", GetItemHandler(svc))
		ar.Get("/"+v.ItemsPath+"/{item}/{name}", GetRatingHandler(svc))

		mr := ar
		if guard != nil {
			mr = ar.With(guard)
		}
		mr.Post("/"+v.ItemsPath+"/{item}/{name}", AddRatingHandler(svc))
		mr.Patch("/"+v.ItemsPath+"/{item}/{name}", UpdateRatingHandler(svc))
		mr.Delete("/"+v.ItemsPath+"/{item}/{name}", DeleteRatingHandler(svc))
	})
}

func ListSubjectsHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := svc.AllRatings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func GetSubjectHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ratings, err := svc.SubjectRatings(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ratings)
	}
}

func ListItemsHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Items(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if items == nil {
			items = []string{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func GetItemHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ratings, err := svc.ItemRatings(r.Context(), chi.URLParam(r, "item"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ratings)
	}
}

func GetRatingHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, err := svc.Rating(r.Context(), chi.URLParam(r, "item"), chi.URLParam(r, "name"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, score)
	}
}

func AddRatingHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, err := scoreParam(r)
		if err != nil {
			metrics.RecordMutation("create", "invalid")
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		entry, err := svc.AddRating(r.Context(), chi.URLParam(r, "item"), chi.URLParam(r, "name"), score)
		if err != nil {
			metrics.RecordMutation("create", outcomeOf(err))
			writeError(w, err)
			return
		}
		metrics.RecordMutation("create", "ok")
		writeJSON(w, http.StatusCreated, entry)
	}
}

func UpdateRatingHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		score, err := scoreParam(r)
		if err != nil {
			metrics.RecordMutation("update", "invalid")
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		entry, err := svc.ChangeRating(r.Context(), chi.URLParam(r, "item"), chi.URLParam(r, "name"), score)
		if err != nil {
			metrics.RecordMutation("update", outcomeOf(err))
			writeError(w, err)
			return
		}
		metrics.RecordMutation("update", "ok")
		writeJSON(w, http.StatusOK, entry)
	}
}

func DeleteRatingHandler(svc *rating.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveRating(r.Context(), chi.URLParam(r, "item"), chi.URLParam(r, "name")); err != nil {
			metrics.RecordMutation("delete", outcomeOf(err))
			writeError(w, err)
			return
		}
		metrics.RecordMutation("delete", "ok")
		w.WriteHeader(http.StatusNoContent)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, rating.ErrNotFound):
		return "not_found"
	case errors.Is(err, rating.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
