package websocket

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types pushed to connected clients.
const (
	NotificationTypeCoinsReceived = "coins_received"
	NotificationTypePayoutUpdate  = "payout_update"
	NotificationTypeInvitation    = "agency_invitation"
)

// Notification represents a message sent over WebSocket
type Notification struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	UserID  string      `json:"userID,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID primitive.ObjectID
	Conn   *websocket.Conn
}

// Hub maintains the set of active clients and delivers notifications
type Hub struct {
	clients    map[primitive.ObjectID]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[primitive.ObjectID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = client
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.UserID]; ok {
				delete(h.clients, client.UserID)
			}
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user not connected")
	}

	return client.Conn.WriteJSON(notification)
}

// NotifyCoinsReceived tells a connected receiver their balance changed.
// Best effort: a disconnected receiver simply misses the push, the ledger
// is already committed.
func (h *Hub) NotifyCoinsReceived(userID primitive.ObjectID, data interface{}) error {
	return h.SendToUser(userID, Notification{
		Type:    NotificationTypeCoinsReceived,
		Message: "You received coins",
		Data:    data,
	})
}

// NotifyPayoutUpdate tells a requester their payout was settled.
func (h *Hub) NotifyPayoutUpdate(userID primitive.ObjectID, data interface{}) error {
	return h.SendToUser(userID, Notification{
		Type:    NotificationTypePayoutUpdate,
		Message: "Your payout request has been processed",
		Data:    data,
	})
}

// NotifyInvitation tells a user an agency invited them.
func (h *Hub) NotifyInvitation(userID primitive.ObjectID, data interface{}) error {
	return h.SendToUser(userID, Notification{
		Type:    NotificationTypeInvitation,
		Message: "An agency invited you to join",
		Data:    data,
	})
}
