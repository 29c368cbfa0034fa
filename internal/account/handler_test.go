package account_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"taeu.kr/filebox/internal/account"
)

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AccountLifecycle(t *testing.T) {
	svc := setupAccountService(t)
	createUser(t, svc, "admin", account.KnownCapabilities)
	mux := http.NewServeMux()
	account.NewHandler(svc).RegisterRoutes(mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/accounts", map[string]any{
		"username": "grace",
		"password": "password-123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var created account.User
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := strconv.FormatInt(created.ID, 10)

	if rec := doJSON(t, mux, http.MethodPost, "/api/accounts", map[string]any{"username": "grace", "password": "password-123"}); rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict for duplicate username, got %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPut, "/api/accounts/"+id+"/capabilities", map[string]any{
		"capabilities": []string{"files.private"},
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/accounts/"+id+"/capabilities", nil)
	var caps struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&caps); err != nil {
		t.Fatalf("decode capabilities: %v", err)
	}
	if len(caps.Capabilities) != 1 || caps.Capabilities[0] != "files.private" {
		t.Fatalf("unexpected capabilities %v", caps.Capabilities)
	}

	if rec := doJSON(t, mux, http.MethodDelete, "/api/accounts/"+id, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodDelete, "/api/accounts/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d for deleted user, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestHandler_RejectsInvalidID(t *testing.T) {
	svc := setupAccountService(t)
	mux := http.NewServeMux()
	account.NewHandler(svc).RegisterRoutes(mux)

	if rec := doJSON(t, mux, http.MethodDelete, "/api/accounts/abc", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestHandler_LastManagerConflict(t *testing.T) {
	svc := setupAccountService(t)
	admin := createUser(t, svc, "admin", account.KnownCapabilities)
	mux := http.NewServeMux()
	account.NewHandler(svc).RegisterRoutes(mux)

	rec := doJSON(t, mux, http.MethodDelete, "/api/accounts/"+strconv.FormatInt(admin.ID, 10), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}
