package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"taeu.kr/filebox/internal/auth"
	"taeu.kr/filebox/internal/files"
	"taeu.kr/filebox/internal/platform/web"
)

const maxMemoryUpload = 32 << 20

// UploadLimiter는 클라이언트별 업로드 빈도를 제한합니다
type UploadLimiter interface {
	Allow(ip string) bool
}

type Handler struct {
	service *files.Service
	limiter UploadLimiter
}

func NewHandler(service *files.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) WithUploadLimiter(limiter UploadLimiter) *Handler {
	h.limiter = limiter
	return h
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/files/{action}", web.Handler(h.handleAction))
	mux.Handle("GET /api/files", web.Handler(h.handleActions))
}

// handleAction은 요청 본문을 파라미터로 바꿔 파일 액션을 실행합니다
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) *web.Error {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return &web.Error{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	}

	action := r.PathValue("action")
	if action == "upload" && h.limiter != nil && !h.limiter.Allow(remoteIP(r)) {
		w.Header().Set("Retry-After", "1")
		return &web.Error{Code: http.StatusTooManyRequests, Message: "rate limit exceeded"}
	}

	params, upload, closeUpload, webErr := readParams(r)
	if webErr != nil {
		return webErr
	}
	defer closeUpload()

	lang := files.MatchLanguage(r.Header.Get("Accept-Language"))
	rc := files.NewRequestContext(claims.UserID, auth.CapabilitiesFromContext(r.Context()), lang)

	result, err := h.service.Execute(r.Context(), rc, action, params, upload)
	if err != nil {
		return toWebError(err, lang)
	}

	body, err := successBody(result)
	if err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: files.Message(lang, "operation_failed"), Err: err}
	}
	web.WriteJSON(w, http.StatusOK, body)
	return nil
}

func (h *Handler) handleActions(w http.ResponseWriter, r *http.Request) *web.Error {
	web.WriteJSON(w, http.StatusOK, map[string]any{"actions": h.service.Actions()})
	return nil
}

// readParams는 multipart, form, JSON 본문을 모두 문자열 맵으로 읽습니다
func readParams(r *http.Request) (files.Params, *files.Upload, func(), *web.Error) {
	params := files.Params{}
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemoryUpload); err != nil {
			return nil, nil, noop, &web.Error{Code: http.StatusBadRequest, Message: "Failed to parse multipart form", Err: err}
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return params, nil, func() { _ = r.MultipartForm.RemoveAll() }, nil
		}
		if err != nil {
			return nil, nil, noop, &web.Error{Code: http.StatusBadRequest, Message: "Failed to get uploaded file", Err: err}
		}
		upload := &files.Upload{Name: header.Filename, Size: header.Size, Reader: file}
		return params, upload, func() {
			_ = file.Close()
			_ = r.MultipartForm.RemoveAll()
		}, nil
	case "application/json":
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, noop, &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
		}
		for key, value := range raw {
			params[key] = stringify(value)
		}
		return params, nil, noop, nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, nil, noop, &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
		}
		for key, values := range r.Form {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
		return params, nil, noop, nil
	}
}

// stringify는 JSON 값을 액션 파라미터 규칙(불리언은 "0"/"1")에 맞춥니다
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	case nil:
		return ""
	case json.Number:
		return v.String()
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(encoded))
}

func successBody(result any) (map[string]any, error) {
	body := map[string]any{}
	if result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(encoded, &body); err != nil {
			return nil, err
		}
	}
	body["ok"] = true
	return body, nil
}

func toWebError(err error, lang language.Tag) *web.Error {
	if errors.Is(err, files.ErrNotHandled) {
		return &web.Error{Code: http.StatusNotFound, Message: "not handled", Err: err}
	}

	var fe *files.Error
	if !errors.As(err, &fe) {
		return &web.Error{Code: http.StatusInternalServerError, Message: files.Message(lang, "operation_failed"), Err: err}
	}
	return &web.Error{
		Code:    statusForKind(fe.Kind),
		Message: fe.Localized(lang),
		Err:     err,
		Fields:  fe.Fields,
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusForKind(kind files.Kind) int {
	switch kind {
	case files.KindValidation:
		return http.StatusBadRequest
	case files.KindPermission:
		return http.StatusForbidden
	case files.KindNotFound:
		return http.StatusNotFound
	case files.KindConflict:
		return http.StatusConflict
	case files.KindQuota:
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}
