//go:build !integration

package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/infra/db/postgres"
)

func authedRequest(t *testing.T, handler http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	token, code := login(t, handler, "test-secret")
	if code != http.StatusOK {
		t.Fatalf("login failed with status %d", code)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStatsHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.routes()

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats postgres.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalAccounts != 3 {
		t.Errorf("TotalAccounts = %d, want 3", stats.TotalAccounts)
	}
	if stats.ActiveByTarif["pro"] != 1 {
		t.Errorf("ActiveByTarif[pro] = %d, want 1", stats.ActiveByTarif["pro"])
	}
}

func TestTarifsHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.routes()

	rec := authedRequest(t, handler, http.MethodGet, "/api/v1/tarifs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var out []tarifResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d tarifs, want 1", len(out))
	}
	if out[0].Name != "pro" || len(out[0].Prices) != 1 || out[0].Prices[0].Value != 990 {
		t.Errorf("unexpected tarif payload: %+v", out[0])
	}
}

func TestCodesCreateHandler(t *testing.T) {
	t.Run("creates a code", func(t *testing.T) {
		srv, codes := newTestServer(t)
		handler := srv.routes()

		body, _ := json.Marshal(map[string]any{"value": "SUMMER", "usage_limit": 10, "tarif_id": 1})
		rec := authedRequest(t, handler, http.MethodPost, "/api/v1/codes", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		if len(codes.created) != 1 || codes.created[0].Value != "SUMMER" {
			t.Fatalf("code not persisted: %+v", codes.created)
		}
	})

	t.Run("rejects invalid payload", func(t *testing.T) {
		srv, codes := newTestServer(t)
		handler := srv.routes()

		body, _ := json.Marshal(map[string]any{"value": "", "usage_limit": 0, "tarif_id": 0})
		rec := authedRequest(t, handler, http.MethodPost, "/api/v1/codes", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if len(codes.created) != 0 {
			t.Fatal("nothing should be persisted")
		}
	})

	t.Run("duplicate maps to conflict", func(t *testing.T) {
		srv, codes := newTestServer(t)
		codes.err = domain.ErrAlreadyExists
		handler := srv.routes()

		body, _ := json.Marshal(map[string]any{"value": "SUMMER", "usage_limit": 10, "tarif_id": 1})
		rec := authedRequest(t, handler, http.MethodPost, "/api/v1/codes", body)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})
}
