package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/middleware"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WatchConversation streams the conversation's message list over a
// websocket. A userId query parameter marks the caller as having the
// conversation open, so incoming messages from the other side become seen.
func (h *Handler) WatchConversation(c echo.Context) error {
	conversationID := c.Param("id")
	userID := c.QueryParam("userId")
	if userID != "" {
		if err := middleware.ActingAs(c, userID); err != nil {
			return err
		}
	}

	// Reject unknown conversations and outsiders while we can still answer
	// with a status code.
	lookupCtx, cancelLookup := requestContext(c)
	err := h.chat.CheckReader(lookupCtx, conversationID, userID)
	cancelLookup()
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied.
		log.Printf("WebSocket upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Only the latest list matters; older undelivered snapshots are dropped.
	updates := make(chan []models.Message, 1)
	stop, err := h.chat.Watch(ctx, conversationID, userID, func(msgs []models.Message) {
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- msgs:
		default:
		}
	})
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeWait))
		return nil
	}
	defer stop()

	go writePump(ctx, cancel, conn, updates)
	readPump(conn)
	return nil
}

// readPump discards client frames and returns when the client goes away.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, updates <-chan []models.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case msgs := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(map[string]interface{}{"messages": msgs}); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
