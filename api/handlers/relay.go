package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Luciuswang/douyin-treasure/logging"
)

var relayLog = logging.New()

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust CORS as needed, e.g., check r.Header.Get("Origin")
	},
}

// Store connected users (userId -> *websocket.Conn)
type eventHub struct {
	clients map[string]*websocket.Conn
	mutex   sync.Mutex
}

var hub = &eventHub{
	clients: make(map[string]*websocket.Conn),
	mutex:   sync.Mutex{},
}

// HandleEventsWebSocket WebSocket handler for game events
func HandleEventsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		relayLog.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	userId := r.URL.Query().Get("userId")
	if userId == "" {
		conn.Close()
		return
	}

	// Register client
	hub.mutex.Lock()
	hub.clients[userId] = conn
	hub.mutex.Unlock()
	relayLog.Infof("User %s connected to /ws/events", userId)

	// Handle disconnect
	conn.SetCloseHandler(func(code int, text string) error {
		hub.mutex.Lock()
		delete(hub.clients, userId)
		hub.mutex.Unlock()
		relayLog.Infof("User %s disconnected from /ws/events", userId)
		return nil
	})

	// Keep connection alive
	for {
		if _, _, err := conn.NextReader(); err != nil {
			conn.Close()
			break
		}
	}
}

// BroadcastDiscoveryEvent announces a successful discovery to all connected
// users. Fire and forget, delivery carries no game-rule weight.
func BroadcastDiscoveryEvent(data map[string]interface{}) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for userId, conn := range hub.clients {
		err := conn.WriteJSON(map[string]interface{}{
			"event": "treasure_discovered",
			"data":  data,
		})
		if err != nil {
			relayLog.Errorf("Error broadcasting discovery event to user %s: %v", userId, err)
			delete(hub.clients, userId)
			conn.Close()
		}
	}
}

// SendEventToUser delivers an event to one connected user if present
func SendEventToUser(userId string, event string, data interface{}) {
	hub.mutex.Lock()
	conn, exists := hub.clients[userId]
	hub.mutex.Unlock()

	if exists {
		err := conn.WriteJSON(map[string]interface{}{
			"event": event,
			"data":  data,
		})
		if err != nil {
			relayLog.Errorf("Error sending event to user %s: %v", userId, err)
			hub.mutex.Lock()
			delete(hub.clients, userId)
			hub.mutex.Unlock()
			conn.Close()
		}
	}
}
