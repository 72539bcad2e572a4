// Package events fans domain events (winners declared, cancellations,
// withdrawal decisions, round starts) out to websocket subscribers.
// Delivery to end users beyond the open sockets is a separate system's
// job; the engine only emits the event with its reason text.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is the wire envelope pushed to subscribers of a topic.
type Message struct {
	Topic   string      `json:"topic"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Hub tracks subscribers per topic and fans messages out to them. It
// satisfies services.Notifier.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message

	topics map[string]map[*Client]bool
	mu     sync.RWMutex

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 64),
		topics:     make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Run processes registration and broadcast traffic. Start it once, in its
// own goroutine, before the server accepts connections.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.topics[client.topic]; !ok {
				h.topics[client.topic] = make(map[*Client]bool)
			}
			h.topics[client.topic][client] = true
			h.mu.Unlock()
			h.logger.Debug("event subscriber registered", slog.String("topic", client.topic))

		case client := <-h.unregister:
			h.mu.Lock()
			if subscribers, ok := h.topics[client.topic]; ok {
				if _, known := subscribers[client]; known {
					client.closeSend()
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.topics, client.topic)
					}
				}
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Notify queues a domain event for every subscriber of the topic. Never
// blocks the calling service: if the hub's queue is full the event is
// dropped and logged.
func (h *Hub) Notify(topic, event string, payload interface{}) {
	select {
	case h.broadcast <- Message{Topic: topic, Event: event, Payload: payload}:
	default:
		h.logger.Warn("event hub queue full, dropping event",
			slog.String("topic", topic),
			slog.String("event", event),
		)
	}
}

func (h *Hub) deliver(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.String("event", message.Event), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.topics[message.Topic] {
		select {
		case client.send <- data:
		default:
			// Slow consumer; skip rather than block the hub.
		}
	}
}
