package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"campusconnect/internal/middleware"
	"campusconnect/internal/services"
	"campusconnect/internal/storage"
)

// UserHandler bundles the profile and directory HTTP handlers.
type UserHandler struct {
	UserService services.UserService
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{UserService: userService}
}

// GetMe returns the caller's own profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	user, err := h.UserService.GetUserProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to load profile", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// UpdateMe applies a partial edit to the caller's profile.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var update services.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	user, err := h.UserService.UpdateUserProfile(r.Context(), userID, update)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to update profile", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// GetUser returns another user's public profile.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	targetID, err := storage.StrToUint(vars["userId"])
	if err != nil {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.UserService.GetUserProfile(r.Context(), targetID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to load profile", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, user)
}

// ListUsers returns the campus directory, excluding the caller.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	users, err := h.UserService.ListUsers(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// DiscoverUsers returns connection candidates: the directory minus
// the caller and everyone they already have an edge with.
func (h *UserHandler) DiscoverUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	users, err := h.UserService.DiscoverUsers(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to load suggestions", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}

// SearchUsers matches users by name or department.
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserIDFromContext(r.Context())

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSONError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	users, err := h.UserService.SearchUsers(r.Context(), query, userID)
	if err != nil {
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, users)
}
