package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"compliance-assistant-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "cluster_events"

// Notification is an operational event pushed to connected dashboards
// (ingestion progress, completed searches).
type Notification struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// clusterMessage wraps a notification relayed through Redis with the id of
// the instance that sent it, so instances can skip their own messages.
type clusterMessage struct {
	Instance string          `json:"instance"`
	Payload  json.RawMessage `json:"payload"`
}

type Hub struct {
	// Registered clients by connection id
	clients map[uuid.UUID]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out (nil for single instance)
	rdb *redis.Client

	// Identifies this process on the cluster channel
	instanceId string

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.Id] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"client_id": client.Id})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.Id]; ok {
				delete(h.clients, client.Id)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"client_id": client.Id})
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a notification to all connected clients and relays it to
// other instances through Redis.
func (h *Hub) Broadcast(notification Notification) {
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}
	data, _ := json.Marshal(notification)

	h.sendLocal(data)

	if h.rdb != nil {
		relay, _ := json.Marshal(clusterMessage{Instance: h.instanceId, Payload: data})
		h.rdb.Publish(context.Background(), clusterChannel, relay)
	}
}

func (h *Hub) sendLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow consumer; drop the connection rather than block the hub
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
				"client_id": client.Id,
			})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// subscribeToRedis relays notifications published by other instances to the
// clients connected to this one.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.relayClusterPayload([]byte(msg.Payload))
	}
}

// relayClusterPayload delivers a cluster message unless this instance sent
// it; Broadcast already delivered own messages locally.
func (h *Hub) relayClusterPayload(payload []byte) {
	var msg clusterMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.logger.Warn("Hub", "Malformed cluster message, dropping", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if msg.Instance == h.instanceId {
		return
	}
	h.sendLocal(msg.Payload)
}
