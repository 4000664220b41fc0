package handlers

import (
	"log"
	"sync"
	"time"

	"crowdnav-backend/models"

	"github.com/gofiber/websocket/v2"
)

type Client struct {
	Conn *websocket.Conn
}

// client manager
type ClientManager struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan models.WebSocketMessage
	register   chan *Client
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

// global client manager
var Manager = &ClientManager{
	clients:    make(map[*websocket.Conn]*Client),
	broadcast:  make(chan models.WebSocketMessage, 100),
	register:   make(chan *Client),
	unregister: make(chan *websocket.Conn),
}

// Start - run the register/unregister/broadcast loop
func (manager *ClientManager) Start() {
	for {
		select {
		case client := <-manager.register:
			manager.mutex.Lock()
			manager.clients[client.Conn] = client
			manager.mutex.Unlock()
			log.Printf("client registered (%s)", client.Conn.RemoteAddr())

		case conn := <-manager.unregister:
			manager.mutex.Lock()
			if _, ok := manager.clients[conn]; ok {
				delete(manager.clients, conn)
				_ = conn.Close()
				log.Printf("client unregistered (%s)", conn.RemoteAddr())
			}
			manager.mutex.Unlock()

		case message := <-manager.broadcast:
			manager.handleBroadcast(message)
		}
	}
}

func (manager *ClientManager) handleBroadcast(message models.WebSocketMessage) {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	for conn := range manager.clients {
		err := conn.WriteJSON(message)
		if err != nil {
			log.Printf("broadcast write failed: %v", err)
			go func(c *websocket.Conn) { manager.unregister <- c }(conn)
		}
	}
}

// BroadcastMessage - queue a message for every connected client
func (manager *ClientManager) BroadcastMessage(msg models.WebSocketMessage) {
	manager.broadcast <- msg
}

func (manager *ClientManager) GetClientCount() int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.clients)
}

// Web client WebSocket handler: streams current goals, plans, feedback and
// results; accepts cancel messages.
func HandleWebClientWebSocket(c *websocket.Conn) {
	client := &Client{Conn: c}

	Manager.register <- client

	defer func() {
		Manager.unregister <- c
	}()

	welcomeMsg := models.WebSocketMessage{
		Type: models.MessageTypeSystemInfo,
		Data: map[string]interface{}{
			"message":      "web client connected",
			"connected_at": time.Now().Format(time.RFC3339),
			"status":       Coord.Status(),
		},
		Timestamp: time.Now().UnixMilli(),
	}
	_ = c.WriteJSON(welcomeMsg)

	for {
		var msg models.WebSocketMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			log.Printf("web message read error: %v", err)
			break
		}

		switch msg.Type {
		case models.MessageTypeCancel:
			if Coord.Cancel() {
				log.Printf("✋ cancel received over websocket")
			}

		default:
			log.Printf("unknown message type: %s", msg.Type)
		}
	}
}
