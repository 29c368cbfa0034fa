package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"taeu.kr/filebox/internal/account"
	"taeu.kr/filebox/internal/platform/web"
)

const refreshCookiePath = "/api/auth/refresh"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/auth/login", web.Handler(h.handleLogin))
	mux.Handle("POST /api/auth/refresh", web.Handler(h.handleRefresh))
	mux.Handle("POST /api/auth/logout", web.Handler(h.handleLogout))
	mux.Handle("GET /api/auth/me", web.Handler(h.handleMe))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionUser는 프론트엔드가 메뉴(휴지통, 공개 파일, 계정 관리)를 고를 때 쓰는 권한 목록을 포함합니다
type sessionUser struct {
	ID           int64    `json:"id"`
	Username     string   `json:"username"`
	Nickname     string   `json:"nickname"`
	Capabilities []string `json:"capabilities"`
}

func newSessionUser(user *account.User) sessionUser {
	caps := user.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return sessionUser{ID: user.ID, Username: user.Username, Nickname: user.Nickname, Capabilities: caps}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) *web.Error {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	pair, user, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return &web.Error{Code: http.StatusUnauthorized, Message: "Invalid credentials", Err: err}
		}
		return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to login", Err: err}
	}

	h.writeSession(w, r, pair)
	web.WriteJSON(w, http.StatusOK, map[string]any{"user": newSessionUser(user)})
	return nil
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) *web.Error {
	refreshCookie, err := r.Cookie(RefreshCookieName)
	if err != nil || refreshCookie.Value == "" {
		return &web.Error{Code: http.StatusUnauthorized, Message: "Refresh token not found", Err: err}
	}

	pair, user, err := h.service.Refresh(r.Context(), refreshCookie.Value)
	if err != nil {
		clearSession(w, r)
		return &web.Error{Code: http.StatusUnauthorized, Message: "Invalid refresh token", Err: err}
	}

	h.writeSession(w, r, pair)
	web.WriteJSON(w, http.StatusOK, map[string]any{"user": newSessionUser(user)})
	return nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) *web.Error {
	clearSession(w, r)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleMe는 미들웨어가 방금 읽은 권한을 돌려주므로 관리자가 바꾼 권한이 바로 보입니다
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) *web.Error {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return &web.Error{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	}

	web.WriteJSON(w, http.StatusOK, newSessionUser(&account.User{
		ID:           claims.UserID,
		Username:     claims.Username,
		Nickname:     claims.Nickname,
		Capabilities: CapabilitiesFromContext(r.Context()),
	}))
	return nil
}

// writeSession은 쿠키 수명을 토큰 수명과 맞춥니다
func (h *Handler) writeSession(w http.ResponseWriter, r *http.Request, pair *TokenPair) {
	setSessionCookie(w, r, AccessCookieName, "/", pair.AccessToken, h.service.config.AccessTokenTTL)
	setSessionCookie(w, r, RefreshCookieName, refreshCookiePath, pair.RefreshToken, h.service.config.RefreshTTL)
}

func clearSession(w http.ResponseWriter, r *http.Request) {
	setSessionCookie(w, r, AccessCookieName, "/", "", -1)
	setSessionCookie(w, r, RefreshCookieName, refreshCookiePath, "", -1)
}

// ttl이 음수이면 쿠키를 지웁니다
func setSessionCookie(w http.ResponseWriter, r *http.Request, name, path, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		cookie.Expires = time.Unix(0, 0)
		cookie.MaxAge = -1
	} else {
		cookie.Expires = time.Now().Add(ttl)
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, cookie)
}
