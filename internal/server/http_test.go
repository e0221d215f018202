package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/kquery/internal/model"
)

func doJSON(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUser, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_BeadLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.NewHTTPHandler("")

	rec := doJSON(t, h, http.MethodPost, "/v1/beads", "alice", map[string]any{"title": "Broken login", "priority": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var bead model.Bead
	if err := json.NewDecoder(rec.Body).Decode(&bead); err != nil {
		t.Fatalf("decode bead: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/beads/"+bead.ID, "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPatch, "/v1/beads/"+bead.ID, "alice", map[string]any{"assignee": "bob"})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/beads/"+bead.ID+"/comments", "alice", map[string]any{"text": "repro attached"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/beads/"+bead.ID+"/history", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	var hist struct {
		History []model.HistoryEntry `json:"history"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.History) != 3 {
		t.Errorf("history entries = %d, want 3 (created, assignee, comment)", len(hist.History))
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/beads/"+bead.ID, "alice", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHTTP_Search(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.NewHTTPHandler("")
	for _, title := range []string{"alpha", "beta"} {
		if rec := doJSON(t, h, http.MethodPost, "/v1/beads", "alice", map[string]any{"title": title}); rec.Code != http.StatusCreated {
			t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
		}
	}

	body := map[string]any{
		"where": []map[string]any{{"op": "eq", "field": "title", "value": "beta"}},
	}
	rec := doJSON(t, h, http.MethodPost, "/v1/search/bead", "alice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Entity  string       `json:"entity"`
		Count   int          `json:"count"`
		Results []model.Bead `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Entity != "bead" || resp.Count != 1 || resp.Results[0].Title != "beta" {
		t.Errorf("response = %+v", resp)
	}

	// An empty body searches everything.
	req := httptest.NewRequest(http.MethodPost, "/v1/search/bead", nil)
	req.Header.Set(HeaderUser, "alice")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":2`) {
		t.Errorf("empty body search: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHTTP_Errors(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.NewHTTPHandler("")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		raw    string
		want   int
	}{
		{name: "bad json", method: http.MethodPost, path: "/v1/beads", raw: "{", want: http.StatusBadRequest},
		{name: "missing title", method: http.MethodPost, path: "/v1/beads", body: map[string]any{}, want: http.StatusBadRequest},
		{name: "unknown bead", method: http.MethodGet, path: "/v1/beads/kd-nope", want: http.StatusNotFound},
		{name: "bad id", method: http.MethodGet, path: "/v1/beads/NOPE", want: http.StatusBadRequest},
		{name: "unknown entity", method: http.MethodPost, path: "/v1/search/widget", body: map[string]any{}, want: http.StatusBadRequest},
		{name: "bad condition", method: http.MethodPost, path: "/v1/search/bead",
			body: map[string]any{"where": []map[string]any{{"op": "eq"}}}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tt.raw != "" {
				req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.raw))
				req.Header.Set(HeaderUser, "alice")
				rec = httptest.NewRecorder()
				h.ServeHTTP(rec, req)
			} else {
				rec = doJSON(t, h, tt.method, tt.path, "alice", tt.body)
			}
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHTTP_AuthAndHealth(t *testing.T) {
	env := newTestEnv(t)
	h := env.srv.NewHTTPHandler("secret")

	if rec := doJSON(t, h, http.MethodGet, "/v1/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/search/bead", "alice", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated search: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !json.Valid(rec.Body.Bytes()) {
		t.Errorf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}
