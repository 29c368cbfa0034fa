package auth

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"taeu.kr/filebox/internal/account"
	"taeu.kr/filebox/internal/platform/web"
)

var publicAPIPaths = map[string]struct{}{
	"/api/health":       {},
	"/api/auth/login":   {},
	"/api/auth/refresh": {},
	"/api/auth/logout":  {},
}

var protectedPrefixes = []string{
	"/api/",
	"/private-file/",
	"/metrics",
}

var managerOnlyPrefixes = []string{
	"/api/accounts",
	"/api/capabilities",
}

var managerOnlyPaths = map[string]struct{}{
	"/api/config":       {},
	"/api/config/files": {},
	"/metrics":          {},
}

// Middleware는 보호 경로에 access 토큰을 요구하고, 권한 목록을 요청 컨텍스트에 싣습니다
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || !isProtectedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := publicAPIPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		accessCookie, err := r.Cookie(AccessCookieName)
		if err != nil || accessCookie.Value == "" {
			web.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		claims, err := s.ParseToken(accessCookie.Value, TokenTypeAccess)
		if err != nil {
			web.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		capabilities, err := s.Capabilities(r.Context(), claims.UserID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", claims.UserID).Msg("[Auth] failed to load capabilities")
			web.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load capabilities"})
			return
		}

		if isManagerOnlyPath(r.URL.Path) && !slices.Contains(capabilities, account.CapabilityAccountsManage) {
			web.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "Forbidden"})
			return
		}

		ctx := WithCapabilities(WithClaims(r.Context(), claims), capabilities)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isProtectedPath(path string) bool {
	for _, prefix := range protectedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isManagerOnlyPath(path string) bool {
	if _, ok := managerOnlyPaths[path]; ok {
		return true
	}
	for _, prefix := range managerOnlyPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
