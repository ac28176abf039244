package websocket

import (
	"encoding/json"
	"log"

	"campusconnect/internal/cctypes"
)

// Hub maintains the set of active clients and routes events to them.
// One connection per user; a new connection replaces the old one.
type Hub struct {
	clients map[uint]*Client

	register   chan *Client
	unregister chan *Client

	// Events addressed to a single user (chat, notifications, badges).
	direct chan *cctypes.Event

	// Feed events fanned out to every connected client the visibility
	// rules allow.
	feed chan *cctypes.Event
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan *cctypes.Event, 256),
		feed:       make(chan *cctypes.Event, 256),
	}
}

// DeliverDirect hands the hub an event for a single recipient.
// Non-blocking so the Kafka consumer never stalls on a full hub.
func (h *Hub) DeliverDirect(event *cctypes.Event) {
	select {
	case h.direct <- event:
	default:
		log.Printf("Warning: hub direct channel full, dropping %s event for user %d", event.Type, event.RecipientID)
	}
}

// DeliverFeed hands the hub a feed event for visibility-filtered
// fan-out.
func (h *Hub) DeliverFeed(event *cctypes.Event) {
	select {
	case h.feed <- event:
	default:
		log.Printf("Warning: hub feed channel full, dropping %s event for post %d", event.Type, event.PostID)
	}
}

// Run starts the hub loop. It owns the clients map; all access goes
// through the channels.
func (h *Hub) Run() {
	log.Println("WebSocket hub run loop started.")
	for {
		select {
		case client := <-h.register:
			if existing, ok := h.clients[client.UserID]; ok {
				log.Printf("User %d already connected, replacing old connection.", client.UserID)
				close(existing.send)
			}
			h.clients[client.UserID] = client
			log.Printf("Client registered: user %d", client.UserID)

		case client := <-h.unregister:
			if stored, ok := h.clients[client.UserID]; ok && stored == client {
				delete(h.clients, client.UserID)
				close(client.send)
				log.Printf("Client unregistered: user %d", client.UserID)
			}

		case event := <-h.direct:
			client, ok := h.clients[event.RecipientID]
			if !ok {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshalling %s event for user %d: %v", event.Type, event.RecipientID, err)
				continue
			}
			h.send(client, payload)

		case event := <-h.feed:
			payload, err := json.Marshal(event)
			if err != nil {
				log.Printf("Error marshalling %s event for fan-out: %v", event.Type, err)
				continue
			}
			for userID, client := range h.clients {
				if !event.VisibleTo(userID) {
					continue
				}
				h.send(client, payload)
			}
		}
	}
}

// send delivers payload to the client without blocking. A full buffer
// means the client is slow or gone; drop it.
func (h *Hub) send(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		log.Printf("Send buffer full for user %d, removing client.", client.UserID)
		close(client.send)
		delete(h.clients, client.UserID)
	}
}
