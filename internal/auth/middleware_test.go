package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"taeu.kr/filebox/internal/auth"
)

func issueAccessTokenForTestUser(t *testing.T, authSvc *auth.Service, username string) string {
	t.Helper()

	tokenPair, _, err := authSvc.Login(context.Background(), username, map[string]string{
		testAdminUsername: testAdminPassword,
		testUserUsername:  testUserPassword,
	}[username])
	if err != nil {
		t.Fatalf("login failed for %s: %v", username, err)
	}
	if tokenPair == nil || tokenPair.AccessToken == "" {
		t.Fatalf("expected access token for %s", username)
	}
	return tokenPair.AccessToken
}

func executeMiddlewareRequest(
	t *testing.T,
	authSvc *auth.Service,
	req *http.Request,
	next http.HandlerFunc,
) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	authSvc.Middleware(next).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AllowsPublicAPIWithoutToken(t *testing.T) {
	authSvc, _, db := setupAuthTestService(t)
	defer db.Close()

	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	if !called {
		t.Fatal("expected next handler to be called for public path")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestMiddleware_DeniesWithoutAccessCookie(t *testing.T) {
	authSvc, _, db := setupAuthTestService(t)
	defer db.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	rec := executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestMiddleware_DeniesManagerRoutes_WithoutAccountsManage(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, _ = seedAuthUsers(t, accountSvc)

	userToken := issueAccessTokenForTestUser(t, authSvc, testUserUsername)
	for _, path := range []string{"/api/accounts", "/api/accounts/1/capabilities", "/api/config", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: userToken})

		rec := executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected status %d, got %d", path, http.StatusForbidden, rec.Code)
		}
	}
}

func TestMiddleware_GuardsMetrics(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, _ = seedAuthUsers(t, accountSvc)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without cookie, got %d", http.StatusUnauthorized, rec.Code)
	}

	adminToken := issueAccessTokenForTestUser(t, authSvc, testAdminUsername)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: adminToken})
	rec = executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected manager to reach metrics, got %d", rec.Code)
	}
}

func TestMiddleware_GuardsPrivateFiles(t *testing.T) {
	authSvc, _, db := setupAuthTestService(t)
	defer db.Close()

	req := httptest.NewRequest(http.MethodGet, "/private-file/Documents/a.txt", nil)
	rec := executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestMiddleware_PassesPublicFilesThrough(t *testing.T) {
	authSvc, _, db := setupAuthTestService(t)
	defer db.Close()

	called := false
	req := httptest.NewRequest(http.MethodGet, "/public-file/abc", nil)
	executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})
	if !called {
		t.Fatal("expected public file route to bypass authentication")
	}
}

func TestMiddleware_InjectsCurrentCapabilities(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, user := seedAuthUsers(t, accountSvc)

	userToken := issueAccessTokenForTestUser(t, authSvc, testUserUsername)
	if err := accountSvc.ReplaceCapabilities(context.Background(), user.ID, []string{"files.private"}); err != nil {
		t.Fatalf("replace capabilities: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/files/list-files", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: userToken})
	var got []string
	executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, r *http.Request) {
		got = auth.CapabilitiesFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	if len(got) != 1 || got[0] != "files.private" {
		t.Fatalf("expected capabilities from store, got %v", got)
	}
}

func TestMiddleware_AllowsAndInjectsClaims_WhenAuthorized(t *testing.T) {
	authSvc, accountSvc, db := setupAuthTestService(t)
	defer db.Close()
	_, _ = seedAuthUsers(t, accountSvc)

	adminToken := issueAccessTokenForTestUser(t, authSvc, testAdminUsername)
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: adminToken})

	called := false
	rec := executeMiddlewareRequest(t, authSvc, req, func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			t.Fatal("expected claims in request context")
		}
		if claims.Username != testAdminUsername {
			t.Fatalf("expected username %q, got %q", testAdminUsername, claims.Username)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if !called {
		t.Fatal("expected next handler to be called")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}
