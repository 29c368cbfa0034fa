package account

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"taeu.kr/filebox/internal/platform/web"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/accounts", web.Handler(h.handleList))
	mux.Handle("POST /api/accounts", web.Handler(h.handleCreate))
	mux.Handle("PATCH /api/accounts/{id}", web.Handler(h.handleUpdate))
	mux.Handle("DELETE /api/accounts/{id}", web.Handler(h.handleDelete))
	mux.Handle("GET /api/accounts/{id}/capabilities", web.Handler(h.handleGetCapabilities))
	mux.Handle("PUT /api/accounts/{id}/capabilities", web.Handler(h.handleReplaceCapabilities))
	mux.Handle("GET /api/capabilities", web.Handler(h.handleKnownCapabilities))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) *web.Error {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to list users", Err: err}
	}
	web.WriteJSON(w, http.StatusOK, users)
	return nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) *web.Error {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	user, err := h.service.CreateUser(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return &web.Error{Code: http.StatusConflict, Message: "Username already exists", Err: err}
		}
		return &web.Error{Code: http.StatusBadRequest, Message: "Failed to create user", Err: err}
	}
	web.WriteJSON(w, http.StatusCreated, user)
	return nil
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) *web.Error {
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	user, err := h.service.UpdateUser(r.Context(), id, &req)
	if err != nil {
		return serviceError("Failed to update user", err)
	}
	web.WriteJSON(w, http.StatusOK, user)
	return nil
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) *web.Error {
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		return serviceError("Failed to delete user", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) handleGetCapabilities(w http.ResponseWriter, r *http.Request) *web.Error {
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}
	if _, err := h.service.GetUserByID(r.Context(), id); err != nil {
		return serviceError("Failed to get capabilities", err)
	}
	capabilities, err := h.service.Capabilities(r.Context(), id)
	if err != nil {
		return serviceError("Failed to get capabilities", err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"capabilities": capabilities})
	return nil
}

func (h *Handler) handleReplaceCapabilities(w http.ResponseWriter, r *http.Request) *web.Error {
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}
	var req struct {
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	if err := h.service.ReplaceCapabilities(r.Context(), id, req.Capabilities); err != nil {
		return serviceError("Failed to update capabilities", err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) handleKnownCapabilities(w http.ResponseWriter, r *http.Request) *web.Error {
	web.WriteJSON(w, http.StatusOK, map[string]any{
		"capabilities": KnownCapabilities,
		"defaults":     DefaultCapabilities,
	})
	return nil
}

func pathID(r *http.Request) (int64, *web.Error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &web.Error{Code: http.StatusBadRequest, Message: "Invalid account id", Err: err}
	}
	return id, nil
}

func serviceError(message string, err error) *web.Error {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return &web.Error{Code: http.StatusNotFound, Message: "User not found", Err: err}
	case errors.Is(err, ErrLastManager):
		return &web.Error{Code: http.StatusConflict, Message: "At least one account manager must remain", Err: err}
	}
	return &web.Error{Code: http.StatusBadRequest, Message: message, Err: err}
}
