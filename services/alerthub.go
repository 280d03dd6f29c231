package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/anprhub/backend/models"
	"github.com/nats-io/nats.go"
)

// MatchSubject is the NATS subject hotlist-hit events are published on.
const MatchSubject = "hotlist.match"

// MatchAlert is the event fanned out when an ingested capture hits an
// active hotlist vehicle.
type MatchAlert struct {
	ReadID     int64     `json:"readId"`
	Plate      string    `json:"plate"`
	CameraID   string    `json:"cameraId"`
	Location   string    `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence int       `json:"confidence"`
	GroupID    int64     `json:"groupId"`
	GroupName  string    `json:"groupName"`
	Action     string    `json:"action"`
}

// AlertHub bridges the NATS match subject to WebSocket subscribers so
// control-room clients see hotlist hits live.
type AlertHub struct {
	natsConn *nats.Conn
	natsSub  *nats.Subscription

	clients   map[*AlertClient]bool
	clientsMu sync.RWMutex

	register   chan *AlertClient
	unregister chan *AlertClient

	published uint64
	publishMu sync.Mutex
}

// NewAlertHub creates the hub and subscribes to the match subject.
func NewAlertHub(natsConn *nats.Conn) (*AlertHub, error) {
	h := &AlertHub{
		natsConn:   natsConn,
		clients:    make(map[*AlertClient]bool),
		register:   make(chan *AlertClient),
		unregister: make(chan *AlertClient),
	}

	sub, err := natsConn.Subscribe(MatchSubject, func(msg *nats.Msg) {
		h.broadcast(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	h.natsSub = sub
	return h, nil
}

// Register adds a client to the hub
func (h *AlertHub) Register(client *AlertClient) {
	h.register <- client
}

// Run starts the hub's main loop
func (h *AlertHub) Run() {
	log.Println("🚨 Alert hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("🚨 Alert client connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("🚨 Alert client disconnected: %s", client.remoteAddr)
		}
	}
}

// PublishMatch emits one matched read onto the bus. Best-effort: a
// publish failure is logged and never fails the ingest request.
func (h *AlertHub) PublishMatch(read *models.CaptureRecord, group *models.HotlistGroup, action string) {
	alert := MatchAlert{
		ReadID:     read.ID,
		Plate:      read.Plate,
		CameraID:   read.CameraID,
		Location:   read.Location,
		Timestamp:  read.Timestamp,
		Confidence: read.Confidence,
		GroupID:    group.ID,
		GroupName:  group.Name,
		Action:     action,
	}
	data, _ := json.Marshal(alert)
	if err := h.natsConn.Publish(MatchSubject, data); err != nil {
		log.Printf("⚠️ Failed to publish match alert for %s: %v", read.Plate, err)
		return
	}
	h.publishMu.Lock()
	h.published++
	h.publishMu.Unlock()
}

// broadcast sends a raw alert payload to every connected client.
func (h *AlertHub) broadcast(data []byte) {
	h.clientsMu.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full, drop the alert for this client
		}
	}
	h.clientsMu.RUnlock()
}

// HubStats reports hub health for the stats endpoint.
type HubStats struct {
	Clients   int    `json:"clients"`
	Published uint64 `json:"published"`
}

func (h *AlertHub) Stats() HubStats {
	h.clientsMu.RLock()
	clientCount := len(h.clients)
	h.clientsMu.RUnlock()

	h.publishMu.Lock()
	published := h.published
	h.publishMu.Unlock()

	return HubStats{
		Clients:   clientCount,
		Published: published,
	}
}
