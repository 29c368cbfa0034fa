package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/prometheus/client_golang/prometheus"
	"taeu.kr/filebox/internal/auth"
	"taeu.kr/filebox/internal/files"
	filesStore "taeu.kr/filebox/internal/files/store"
	"taeu.kr/filebox/internal/platform/database"
)

var allFileCapabilities = []string{"files.private", "files.public", "files.trash", "files.list_public"}

type handlerEnv struct {
	mux      *http.ServeMux
	service  *files.Service
	settings *files.Settings
	dataRoot string
}

func setupHandler(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	settings := &files.Settings{PublicBaseURL: "https://files.example.test"}
	dataRoot := t.TempDir()
	service, err := files.NewService(files.Config{
		DataRoot:   dataRoot,
		Quotas:     filesStore.NewQuotaStore(db),
		Shares:     filesStore.NewShareStore(db),
		Settings:   func() files.Settings { return *settings },
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(service).RegisterRoutes(mux)
	return &handlerEnv{mux: mux, service: service, settings: settings, dataRoot: dataRoot}
}

func (e *handlerEnv) do(t *testing.T, req *http.Request, userID int64, capabilities []string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	ctx := auth.WithClaims(req.Context(), &auth.Claims{UserID: userID, Username: "tester", Type: "access"})
	ctx = auth.WithCapabilities(ctx, capabilities)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req.WithContext(ctx))

	body := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func formRequest(action string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/files/"+action, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func uploadRequest(t *testing.T, dir, name, content string, extra map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("path", dir); err != nil {
		t.Fatalf("write field: %v", err)
	}
	for key, value := range extra {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandleAction_ListFilesReturnsOkEnvelope(t *testing.T) {
	env := setupHandler(t)

	rec, body := env.do(t, formRequest("list-files", url.Values{"path": {"/"}}), 1, allFileCapabilities)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %v", body)
	}
	entries, ok := body["files"].([]any)
	if !ok || len(entries) != 4 {
		t.Fatalf("expected 4 default folders, got %v", body["files"])
	}
}

func TestHandleAction_MissingParameterIsBadRequest(t *testing.T) {
	env := setupHandler(t)

	rec, body := env.do(t, formRequest("rename", url.Values{"path": {"/Documents"}}), 1, allFileCapabilities)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if body["parameter"] != "new_path" {
		t.Fatalf("expected parameter=new_path, got %v", body)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Fatalf("expected localized error message, got %v", body)
	}
}

func TestHandleAction_MissingCapabilityIsForbidden(t *testing.T) {
	env := setupHandler(t)

	rec, _ := env.do(t, formRequest("list-trash", nil), 1, []string{"files.private"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d, got %d", http.StatusForbidden, rec.Code)
	}
}

func TestHandleAction_UnknownActionIsNotHandled(t *testing.T) {
	env := setupHandler(t)

	rec, body := env.do(t, formRequest("frobnicate", nil), 1, allFileCapabilities)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if body["error"] != "not handled" {
		t.Fatalf("expected not handled, got %v", body)
	}
}

func TestHandleAction_RequiresClaims(t *testing.T) {
	env := setupHandler(t)

	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, formRequest("list-files", url.Values{"path": {"/"}}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestHandleAction_MultipartUpload(t *testing.T) {
	env := setupHandler(t)

	rec, body := env.do(t, uploadRequest(t, "/Documents", "notes.txt", "hello world", nil), 7, allFileCapabilities)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if body["path"] != "/Documents/notes.txt" {
		t.Fatalf("unexpected upload result: %v", body)
	}

	data, err := os.ReadFile(filepath.Join(env.service.Layout().UserRoot(7), "Documents", "notes.txt"))
	if err != nil {
		t.Fatalf("read uploaded file: %v", err)
	}
	if string(data) != "hello world" {
		t.Fatalf("unexpected content %q", data)
	}

	usage, err := env.service.Ledger().Usage(context.Background(), 7)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage < int64(len("hello world")) {
		t.Fatalf("expected usage to include upload, got %d", usage)
	}
}

func TestHandleAction_QuotaExceededIsInsufficientStorage(t *testing.T) {
	env := setupHandler(t)
	env.settings.Quota = 1

	rec, _ := env.do(t, uploadRequest(t, "/", "big.bin", strings.Repeat("x", 64), nil), 3, allFileCapabilities)
	if rec.Code != http.StatusInsufficientStorage {
		t.Fatalf("expected status %d, got %d: %s", http.StatusInsufficientStorage, rec.Code, rec.Body.String())
	}
}

func TestHandleAction_JSONBodyBooleansBecomeFlags(t *testing.T) {
	env := setupHandler(t)

	create := httptest.NewRequest(http.MethodPost, "/api/files/create-folder", strings.NewReader(`{"path":"/Work"}`))
	create.Header.Set("Content-Type", "application/json")
	if rec, _ := env.do(t, create, 5, allFileCapabilities); rec.Code != http.StatusOK {
		t.Fatalf("create-folder failed: %d %s", rec.Code, rec.Body.String())
	}

	remove := httptest.NewRequest(http.MethodPost, "/api/files/delete", strings.NewReader(`{"path":"/Work","skip_trash":true}`))
	remove.Header.Set("Content-Type", "application/json")
	rec, body := env.do(t, remove, 5, allFileCapabilities)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", rec.Code, rec.Body.String())
	}
	if body["trashed"] != false {
		t.Fatalf("expected permanent delete, got %v", body)
	}
}

func TestHandleAction_LocalizesErrors(t *testing.T) {
	env := setupHandler(t)

	en := formRequest("rename", url.Values{"path": {"/Documents"}})
	fr := formRequest("rename", url.Values{"path": {"/Documents"}})
	fr.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")

	_, enBody := env.do(t, en, 1, allFileCapabilities)
	_, frBody := env.do(t, fr, 1, allFileCapabilities)
	if enBody["error"] == frBody["error"] {
		t.Fatalf("expected different messages per language, got %v", enBody["error"])
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"a", "a"},
		{true, "1"},
		{false, "0"},
		{nil, ""},
		{float64(42), "42"},
	}
	for _, tt := range tests {
		if got := stringify(tt.in); got != tt.want {
			t.Errorf("stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type denyAll struct{ calls int }

func (d *denyAll) Allow(string) bool {
	d.calls++
	return false
}

func TestHandleAction_UploadLimiter(t *testing.T) {
	env := setupHandler(t)
	limiter := &denyAll{}
	mux := http.NewServeMux()
	NewHandler(env.service).WithUploadLimiter(limiter).RegisterRoutes(mux)
	env.mux = mux

	rec, _ := env.do(t, uploadRequest(t, "/", "a.txt", "a", nil), 1, allFileCapabilities)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}

	rec, _ = env.do(t, formRequest("list-files", url.Values{"path": {"/"}}), 1, allFileCapabilities)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other actions to bypass the limiter, got %d", rec.Code)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected limiter to be consulted once, got %d", limiter.calls)
	}
}
