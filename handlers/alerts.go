package handlers

import (
	"log"
	"net/http"

	"github.com/anprhub/backend/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var alertUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AlertHandler serves the live hotlist-match alert stream.
type AlertHandler struct {
	Hub *services.AlertHub
}

func NewAlertHandler(hub *services.AlertHub) *AlertHandler {
	return &AlertHandler{Hub: hub}
}

// ServeWS handles GET /ws/alerts — upgrades to a WebSocket and
// attaches the client to the alert hub.
func (h *AlertHandler) ServeWS(c *gin.Context) {
	conn, err := alertUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Alert WebSocket upgrade failed: %v", err)
		return
	}

	client := services.NewAlertClient(h.Hub, conn, c.Request.RemoteAddr)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetAlertStats handles GET /api/alerts/stats
func (h *AlertHandler) GetAlertStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Stats())
}
