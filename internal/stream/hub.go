package stream

import (
	"context"
	"strings"
	"sync"

	"github.com/AndrewsGM/driver-pro/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	channelPrefix  = "drive:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix
)

// Hub fans session frames out to websocket watchers. With Redis configured
// every frame goes through pub/sub so watchers on other instances see it too.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     zerolog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client, log zerolog.Logger) *Hub {
	h := &Hub{
		redis:   redisClient,
		log:     log.With().Str("component", "stream").Logger(),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(context.Background(), channelPattern)
		if _, err := h.pubsub.Receive(context.Background()); err != nil {
			h.log.Warn().Err(err).Msg("redis subscribe failed, delivering locally")
			_ = h.pubsub.Close()
			h.pubsub = nil
		} else {
			go h.subscribeRedis()
		}
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	metrics.StreamClients.Inc()
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		if _, ok := sessionClients[client]; !ok {
			return
		}
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
		metrics.StreamClients.Dec()
		close(client.Send)
	}
}

// Broadcast implements session.Notifier.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	if h.pubsub != nil {
		err := h.redis.Publish(context.Background(), redisChannel(sessionID), payload).Err()
		if err == nil {
			return
		}
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("redis publish failed")
	}
	h.deliver(sessionID, payload)
}

func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
			h.log.Debug().Str("session_id", sessionID).Msg("watcher too slow, frame dropped")
		}
	}
}

func (h *Hub) subscribeRedis() {
	for msg := range h.pubsub.Channel() {
		sessionID := sessionIDFromChannel(msg.Channel)
		if sessionID == "" {
			continue
		}
		h.deliver(sessionID, []byte(msg.Payload))
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) {
		return ""
	}
	if !strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
