package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/tabletoplab/ratings/internal/ingest"
	"github.com/tabletoplab/ratings/internal/rating"
)

func newServer(t *testing.T, guard func(http.Handler) http.Handler) (*httptest.Server, *rating.Service) {
	t.Helper()
	vocab, err := rating.Flavor("games")
	if err != nil {
		t.Fatal(err)
	}
	svc := rating.NewService(rating.NewInMemoryStore(), vocab, nil)
	r := chi.NewRouter()
	Mount(r, svc, guard)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func seed(t *testing.T, svc *rating.Service) {
	t.Helper()
	err := svc.Load(context.Background(), []ingest.Record{
		{Name: "em", Ratings: []ingest.ItemRating{{Name: "hanabi", Score: 6}}},
		{Name: "mel", Ratings: []ingest.ItemRating{{Name: "hanabi", Score: 8}}},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestGetItemRatings(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	resp := do(t, http.MethodGet, srv.URL+"/api/games/hanabi")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]int
	decode(t, resp, &got)
	if got["Em"] != 6 || got["Mel"] != 8 || len(got) != 2 {
		t.Errorf("body = %v, want {Em:6 Mel:8}", got)
	}
}

func TestGetUnknownItemIs404(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	resp := do(t, http.MethodGet, srv.URL+"/api/games/gloomhaven")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["detail"] != "Game Gloomhaven not found." {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestGetSubjectRatings(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	resp := do(t, http.MethodGet, srv.URL+"/api/players/EM")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got map[string]int
	decode(t, resp, &got)
	if got["Hanabi"] != 6 || len(got) != 1 {
		t.Errorf("body = %v", got)
	}
}

func TestListEndpoints(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	resp := do(t, http.MethodGet, srv.URL+"/api/games/")
	var items []string
	decode(t, resp, &items)
	if len(items) != 1 || items[0] != "Hanabi" {
		t.Errorf("items = %v, want [Hanabi]", items)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/players/")
	var all map[string]map[string]int
	decode(t, resp, &all)
	if all["Em"]["Hanabi"] != 6 || all["Mel"]["Hanabi"] != 8 {
		t.Errorf("all = %v", all)
	}
}

func TestCreateConflictThenUpdateThenDelete(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	// create on a rated pair conflicts and leaves the score alone
	resp := do(t, http.MethodPost, srv.URL+"/api/games/hanabi/em?rating=9")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("POST rated pair: status = %d, want 409", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["detail"] != "Game Hanabi has already been rated by Em." {
		t.Errorf("detail = %q", body["detail"])
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/games/hanabi/em")
	var score int
	decode(t, resp, &score)
	if score != 6 {
		t.Errorf("score after conflict = %d, want 6", score)
	}

	// update succeeds and returns the entry body
	resp = do(t, http.MethodPatch, srv.URL+"/api/games/hanabi/em?rating=9")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PATCH: status = %d", resp.StatusCode)
	}
	var entry struct {
		Name  string         `json:"name"`
		Games map[string]int `json:"games"`
	}
	decode(t, resp, &entry)
	if entry.Name != "Em" || entry.Games["Hanabi"] != 9 {
		t.Errorf("entry = %+v", entry)
	}

	// delete removes only that pair
	resp = do(t, http.MethodDelete, srv.URL+"/api/games/hanabi/em")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE: status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/games/hanabi/em")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET after delete: status = %d, want 404", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/games/hanabi/mel")
	decode(t, resp, &score)
	if score != 8 {
		t.Errorf("Mel's score = %d, want 8", score)
	}
}

func TestCreateNewPairReturns201(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	resp := do(t, http.MethodPost, srv.URL+"/api/games/catan/em?rating=7")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var entry struct {
		Name  string         `json:"name"`
		Games map[string]int `json:"games"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Name != "Em" || entry.Games["Catan"] != 7 {
		t.Errorf("entry = %+v (raw %s)", entry, raw)
	}
	if !strings.Contains(string(raw), `"games"`) {
		t.Errorf("entry body missing flavor items key: %s", raw)
	}
}

func TestMutationScoreValidation(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	for _, q := range []string{"", "?rating=abc", "?rating=0", "?rating=11"} {
		resp := do(t, http.MethodPost, srv.URL+"/api/games/azul/em"+q)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %q: status = %d, want 400", q, resp.StatusCode)
		}
	}
	// the failed attempts created nothing
	resp := do(t, http.MethodGet, srv.URL+"/api/games/azul")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET azul: status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateMissingPairIs404(t *testing.T) {
	srv, svc := newServer(t, nil)
	seed(t, svc)

	resp := do(t, http.MethodPatch, srv.URL+"/api/games/catan/em?rating=5")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["detail"] != "Game Catan not rated by Em." {
		t.Errorf("detail = %q", body["detail"])
	}
}

func TestGuardWrapsMutationsOnly(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
	srv, svc := newServer(t, deny)
	seed(t, svc)

	if resp := do(t, http.MethodGet, srv.URL+"/api/games/hanabi"); resp.StatusCode != http.StatusOK {
		t.Errorf("guarded read: status = %d, want 200", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/games/azul/em?rating=5"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("guarded create: status = %d, want 403", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/games/hanabi/em"); resp.StatusCode != http.StatusForbidden {
		t.Errorf("guarded delete: status = %d, want 403", resp.StatusCode)
	}
}
