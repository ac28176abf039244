package chatserver

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"campusconnect/internal/auth"
	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
	"campusconnect/internal/services"
	ws "campusconnect/internal/websocket"
)

// WebSocketHandler handles WebSocket connection requests.
type WebSocketHandler struct {
	hub         *ws.Hub
	chatService services.ChatService
	blacklist   auth.TokenBlacklist
	cfg         config.Config
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(hub *ws.Hub, chatService services.ChatService, blacklist auth.TokenBlacklist, cfg config.Config) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		chatService: chatService,
		blacklist:   blacklist,
		cfg:         cfg,
	}
}

// ServeWS authenticates the token query parameter, upgrades the
// connection and hands it to the hub. Anonymous connections are
// refused; every live subscription belongs to a signed-in user.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing authentication token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(r.Context(), token, h.cfg.Auth.JWTSecretKey, h.blacklist)
	if err != nil {
		log.Printf("WebSocket connection refused, invalid token: %v", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	sendChat := func(ctx context.Context, senderID uint, frame cctypes.OutboundChat) error {
		if h.chatService == nil {
			return fmt.Errorf("chat service not available")
		}
		_, err := h.chatService.SendMessage(ctx, senderID, frame.ReceiverID, frame.Text)
		return err
	}

	ws.ServeWsPerConnection(h.hub, sendChat, claims.UserID, w, r, h.cfg.WebSocket)
}
