package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/roomgate/internal/middleware"
	ws "github.com/thereayou/roomgate/internal/websocket"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub      *ws.Hub
	commands *CommandHandler
	upgrader websocket.Upgrader
}

// NewWebSocketHandler создает новый WebSocket handler. Пустой список
// origins разрешает любой источник.
func NewWebSocketHandler(hub *ws.Hub, commands *CommandHandler, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub:      hub,
		commands: commands,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
	}
}

// HandleWebSocket обрабатывает WebSocket соединения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := middleware.CurrentUser(c)
	if id.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Str("module", "handlers.ws").Err(err).Msg("upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, id.UserID, id.Name)

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.commands)
}
