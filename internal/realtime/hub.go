package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains round_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// roundID -> map[clientID]*Client
	rounds   map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per round
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishRoundMessage(roundID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to round channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeRound(roundID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rounds:   make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a round room. Starts Redis subscription for this round if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rounds[c.RoundID] == nil {
		h.rounds[c.RoundID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeRound(c.RoundID, func(event string, payload []byte) {
				h.BroadcastToRound(c.RoundID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.RoundID] = cancel
			}
		}
	}
	h.rounds[c.RoundID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined round", zap.String("client_id", c.ID), zap.String("round_id", c.RoundID.String()))
}

// Unregister removes a client from a round room. Cancels Redis subscription when last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rounds[c.RoundID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rounds, c.RoundID)
			if cancel, ok := h.subs[c.RoundID]; ok {
				cancel()
				delete(h.subs, c.RoundID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left round", zap.String("client_id", c.ID), zap.String("round_id", c.RoundID.String()))
}

// BroadcastToRound sends a message to all clients in a round (local only).
func (h *Hub) BroadcastToRound(roundID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	// Snapshot under the lock; Register/Unregister mutate the room map.
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rounds[roundID]))
	for _, c := range h.rounds[roundID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// PublishRoundEvent sends to local clients and publishes to Redis for other
// instances. This is the entry point the matching and registration paths use.
func (h *Hub) PublishRoundEvent(roundID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToRound(roundID, event, json.RawMessage(data))
	if h.redis != nil {
		_ = h.redis.PublishRoundMessage(roundID, event, data)
	}
}

// ConnectionCount returns the number of connected clients in a round.
func (h *Hub) ConnectionCount(roundID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rounds[roundID])
}
