package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"crop-recommender/internal/metrics"
	"crop-recommender/internal/recommend"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// Hub fans new recommendations out to connected WebSocket clients.
type Hub struct {
	upgrader         websocket.Upgrader
	clients          map[*websocket.Conn]bool // Connected WebSocket clients
	clientsMu        sync.Mutex
	broadcastChannel chan recommend.Recommendation
	stopChannel      chan struct{}
	clientGauge      metrics.MetricsGauge // may be nil

	mu        sync.Mutex
	isRunning bool
	stopped   bool
}

func NewHub(clientGauge metrics.MetricsGauge) *Hub {
	return &Hub{
		upgrader:         websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:          make(map[*websocket.Conn]bool),
		broadcastChannel: make(chan recommend.Recommendation, 100),
		stopChannel:      make(chan struct{}),
		clientGauge:      clientGauge,
	}
}

// Start launches the broadcaster. It is a no-op when already running.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.isRunning || h.stopped {
		return
	}
	h.isRunning = true
	go h.clientBroadcaster()
}

// Stop closes every client connection and ends the broadcaster.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	h.isRunning = false
	close(h.stopChannel)

	h.clientsMu.Lock()
	for client := range h.clients {
		client.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientsMu.Unlock()
	h.setGauge(0)
}

// Publish queues rec for broadcast. It never blocks; when the queue is full the update is dropped.
func (h *Hub) Publish(rec recommend.Recommendation) {
	select {
	case h.broadcastChannel <- rec:
	default:
		log.Warn().Str("id", rec.ID).Msg("Live feed queue full, dropping update")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

func (h *Hub) clientBroadcaster() {
	for {
		select {
		case rec := <-h.broadcastChannel:
			h.broadcastToClients(rec)
		case <-h.stopChannel:
			return
		}
	}
}

func (h *Hub) broadcastToClients(rec recommend.Recommendation) {
	data, err := json.Marshal(rec)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal recommendation for broadcast")
		return
	}

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug().Err(err).Msg("Failed to send message to WebSocket client")
			client.Close()
			delete(h.clients, client)
		}
	}
	h.setGauge(len(h.clients))
}

// ServeWS upgrades the request and keeps the client registered until it disconnects. Once the
// hub is stopped new clients are refused.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.isStopped() {
		http.Error(w, "live feed is shut down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	// Stop may have run during the upgrade.
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.clientsMu.Lock()
	h.clients[conn] = true
	h.setGauge(len(h.clients))
	h.clientsMu.Unlock()
	h.mu.Unlock()

	// Reads only detect disconnects; clients send nothing meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.clientsMu.Lock()
	delete(h.clients, conn)
	h.setGauge(len(h.clients))
	h.clientsMu.Unlock()
}

func (h *Hub) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (h *Hub) setGauge(n int) {
	if h.clientGauge != nil {
		h.clientGauge.Set(float64(n))
	}
}
