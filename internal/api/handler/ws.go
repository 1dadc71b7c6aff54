package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The session token is the access control; origin is not.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket streams the session user's notifications live. Each
// connection subscribes to the user's Redis channel; the polling
// endpoints remain available for clients that do not hold a socket.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	user := currentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	pubsub := h.store.SubscribeNotifications(user.ID)

	done := make(chan struct{})
	go readUntilClose(conn, done)
	h.writePump(conn, pubsub, done)
}

// readUntilClose drains the connection so close frames and pongs are
// processed. Clients never send application data on this socket.
func readUntilClose(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards published notifications to the socket and keeps
// the connection alive with pings.
func (h *Handler) writePump(conn *websocket.Conn, pubsub *redis.PubSub, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		pubsub.Close()
		conn.Close()
	}()

	messages := pubsub.Channel()
	for {
		select {
		case msg, ok := <-messages:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Payload is the notification JSON as published.
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
