package serve

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"taeu.kr/filebox/internal/auth"
	"taeu.kr/filebox/internal/files"
	"taeu.kr/filebox/internal/platform/web"
)

const (
	cacheMaxAge      = "max-age=31536000"
	thumbnailQuality = 85
)

type Handler struct {
	service     *files.Service
	settings    files.SettingsFunc
	ownerCaps   files.OwnerCapabilities
	thumbnailer Thumbnailer
	limiter     *IPRateLimiter
}

func NewHandler(service *files.Service, settings files.SettingsFunc, ownerCaps files.OwnerCapabilities, thumbnailer Thumbnailer, limiter *IPRateLimiter) *Handler {
	return &Handler{
		service:     service,
		settings:    settings,
		ownerCaps:   ownerCaps,
		thumbnailer: thumbnailer,
		limiter:     limiter,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /private-file/{path...}", web.Handler(h.handlePrivateFile))
	mux.Handle("GET /public-file/{hash}", web.Handler(h.limiter.Middleware(h.handlePublicFile)))
}

func (h *Handler) handlePrivateFile(w http.ResponseWriter, r *http.Request) *web.Error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return notFound()
	}
	rc := files.NewRequestContext(claims.UserID, auth.CapabilitiesFromContext(r.Context()), files.MatchLanguage(r.Header.Get("Accept-Language")))

	abs, err := h.service.ResolvePrivateFile(rc, "/"+r.PathValue("path"))
	if err != nil {
		return notFound()
	}

	if size := r.URL.Query().Get("s"); size != "" && h.settings().ImagesPreview {
		if h.serveThumbnail(w, abs, size) {
			return nil
		}
	}
	return serveFile(w, r, abs, "", "private")
}

func (h *Handler) handlePublicFile(w http.ResponseWriter, r *http.Request) *web.Error {
	abs, name, err := h.service.ResolvePublicFile(r.Context(), r.PathValue("hash"), h.ownerCaps)
	if err != nil {
		return notFound()
	}
	return serveFile(w, r, abs, name, "public")
}

// serveThumbnail은 미리보기를 만들 수 있으면 응답을 쓰고 true를 반환합니다
func (h *Handler) serveThumbnail(w http.ResponseWriter, abs, rawSize string) bool {
	if h.thumbnailer == nil {
		return false
	}
	size, err := strconv.Atoi(rawSize)
	if err != nil || size <= 0 {
		return false
	}

	var buf bytes.Buffer
	contentType, handled, err := h.thumbnailer.Render(&buf, abs, size, thumbnailQuality)
	if err != nil {
		log.Warn().Err(err).Str("path", abs).Int("size", size).Msg("[Serve] thumbnail failed")
		return false
	}
	if !handled {
		return false
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, "+cacheMaxAge)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return true
}

func serveFile(w http.ResponseWriter, r *http.Request, abs, downloadName, visibility string) *web.Error {
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound()
		}
		return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to open file", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return notFound()
	}

	w.Header().Set("Content-Type", files.DetectMime(abs))
	w.Header().Set("Cache-Control", visibility+", "+cacheMaxAge)
	if downloadName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": downloadName}))
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return nil
}

func notFound() *web.Error {
	return &web.Error{Code: http.StatusNotFound, Message: "not handled"}
}
