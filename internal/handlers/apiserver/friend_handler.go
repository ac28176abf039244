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

// FriendHandler bundles the friend-graph HTTP handlers.
type FriendHandler struct {
	FriendService services.FriendService
}

// NewFriendHandler creates a new FriendHandler instance.
func NewFriendHandler(friendService services.FriendService) *FriendHandler {
	return &FriendHandler{FriendService: friendService}
}

// SendRequest creates a pending friend request to another user.
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		RecipientID uint `json:"recipientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	edge, err := h.FriendService.SendFriendRequest(r.Context(), userID, req.RecipientID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSelfRequest):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrRecipientNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrAlreadyConnected):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			writeJSONError(w, "failed to send friend request", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, edge)
}

// AcceptRequest accepts a pending friend request addressed to the caller.
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, true)
}

// DeclineRequest declines a pending friend request addressed to the caller.
func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.decideRequest(w, r, false)
}

func (h *FriendHandler) decideRequest(w http.ResponseWriter, r *http.Request, accept bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	requestID, err := storage.StrToUint(mux.Vars(r)["requestId"])
	if err != nil {
		writeJSONError(w, "invalid request id", http.StatusBadRequest)
		return
	}

	if accept {
		err = h.FriendService.AcceptFriendRequest(r.Context(), userID, requestID)
	} else {
		err = h.FriendService.DeclineFriendRequest(r.Context(), userID, requestID)
	}
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRequestNotFound):
			writeJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, services.ErrNotRecipient):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, services.ErrRequestNotPending):
			writeJSONError(w, err.Error(), http.StatusConflict)
		default:
			writeJSONError(w, "failed to process friend request", http.StatusInternalServerError)
		}
		return
	}

	msg := "request declined"
	if accept {
		msg = "request accepted"
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": msg})
}

// ListPending returns the caller's incoming pending friend requests.
func (h *FriendHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	requests, err := h.FriendService.ListPendingRequests(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to list pending requests", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, requests)
}

// ListFriends returns the caller's friends.
func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	friends, err := h.FriendService.GetFriendsList(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to list friends", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, friends)
}

// Unfriend removes an accepted friendship between the caller and
// another user.
func (h *FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	friendID, err := storage.StrToUint(mux.Vars(r)["userId"])
	if err != nil {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	if err := h.FriendService.Unfriend(r.Context(), userID, friendID); err != nil {
		if errors.Is(err, services.ErrNotFriends) {
			writeJSONError(w, err.Error(), http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to unfriend", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "friend removed"})
}
