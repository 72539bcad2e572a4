package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/khelarena/economy-engine/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the deployed frontend origin once it is fixed.
		return true
	},
}

// WebSocketHandler subscribes clients to a domain-event topic:
// competitions, tournaments or withdrawals.
type WebSocketHandler struct {
	hub    *events.Hub
	logger *slog.Logger
}

func NewWebSocketHandler(hub *events.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

var knownTopics = map[string]bool{
	"competitions": true,
	"tournaments":  true,
	"withdrawals":  true,
}

func (h *WebSocketHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	if !knownTopics[topic] {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	events.NewClient(h.hub, conn, topic)
	h.logger.Debug("websocket subscriber connected", slog.String("topic", topic))
}
