package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tabpool-backend/middleware"
	"tabpool-backend/models"
	"tabpool-backend/services"
)

const (
	// Time allowed to write one message to the peer
	wsWriteWait = 10 * time.Second
	// Time allowed between pongs before the stream is dropped
	wsPongWait = 60 * time.Second
	// Ping period, below wsPongWait
	wsPingPeriod = 54 * time.Second
	// Clients only send control frames
	wsMaxMessage = 512
)

// EventHandler serves recent pool events and the live event stream.
type EventHandler struct {
	*BaseHandler
	pool     *services.PoolService
	upgrader websocket.Upgrader
}

// NewEventHandler creates a new event handler. origins restricts websocket
// upgrades the same way as CORS; "*" or an empty list allows any origin.
func NewEventHandler(pool *services.PoolService, origins []string, logger *zap.SugaredLogger) *EventHandler {
	return &EventHandler{
		BaseHandler: NewBaseHandler(logger),
		pool:        pool,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(allowed) == 0 || allowed[origin]
	}
}

// HandleEvents returns recent events, newest first
// @Summary Recent pool events
// @Tags Events
// @Produce json
// @Param limit query int false "Maximum events (default 50)"
// @Success 200 {object} models.EventsResponse
// @Router /api/events [get]
func (h *EventHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	events := h.pool.Events(limit)
	h.sendSuccess(w, models.EventsResponse{Events: events, Total: len(events)})
}

// HandleEventStream upgrades to a websocket and pushes each pool event as
// a JSON message until the client goes away.
// @Summary Live pool events (websocket)
// @Tags Events
// @Success 101 {object} payment_job.Event
// @Router /api/events/ws [get]
func (h *EventHandler) HandleEventStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so no event published after
	// the client sees the upgrade is missed.
	events, cancel := h.pool.Subscribe(64)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.logger.Debugw("event stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	log := h.logger.With("request_id", middleware.RequestIDFrom(r.Context()), "remote", r.RemoteAddr)
	log.Debugw("event stream opened")

	// The reader only drains control frames and notices disconnects.
	done := make(chan struct{})
	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			log.Debugw("event stream closed by client")
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				log.Debugw("event stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
