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

// ChatHandler bundles the direct-messaging HTTP handlers. Live
// delivery goes over the chatserver websocket; these endpoints serve
// history, the chat list and unread state.
type ChatHandler struct {
	ChatService services.ChatService
}

// NewChatHandler creates a new ChatHandler instance.
func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{ChatService: chatService}
}

// SendMessage sends a direct message over HTTP. The websocket path in
// the chatserver calls the same service method.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	var req struct {
		ReceiverID uint   `json:"receiverId"`
		Text       string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := h.ChatService.SendMessage(r.Context(), userID, req.ReceiverID, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			writeJSONError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, services.ErrNotFriends):
			writeJSONError(w, err.Error(), http.StatusForbidden)
		default:
			writeJSONError(w, "failed to send message", http.StatusInternalServerError)
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, msg)
}

// GetMessages returns the conversation with another user.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	otherID, err := storage.StrToUint(mux.Vars(r)["userId"])
	if err != nil {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	messages, err := h.ChatService.GetMessages(r.Context(), userID, otherID)
	if err != nil {
		writeJSONError(w, "failed to load messages", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

// GetChannels returns the caller's chat list with unread counts.
func (h *ChatHandler) GetChannels(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	channels, err := h.ChatService.GetChannels(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to load chats", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, channels)
}

// MarkRead clears the caller's unread state in the conversation with
// another user.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	otherID, err := storage.StrToUint(mux.Vars(r)["userId"])
	if err != nil {
		writeJSONError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	cleared, err := h.ChatService.MarkChannelRead(r.Context(), userID, otherID)
	if err != nil {
		writeJSONError(w, "failed to mark messages read", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]int64{"cleared": cleared})
}

// GetUnread returns the caller's unread badge plus per-channel counts.
func (h *ChatHandler) GetUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	total, err := h.ChatService.GetTotalUnread(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to load unread counts", http.StatusInternalServerError)
		return
	}
	perChannel, err := h.ChatService.GetUnreadCounts(r.Context(), userID)
	if err != nil {
		writeJSONError(w, "failed to load unread counts", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"total":    total,
		"channels": perChannel,
	})
}
