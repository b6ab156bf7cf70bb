package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/trivault/trivault/internal/events"
)

// writeTimeout bounds each outbound frame write
const writeTimeout = 10 * time.Second

// EventsStreamHandler streams bus events to WebSocket clients
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_ws").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws. An optional comma-separated `types`
// query parameter filters the stream.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var allowedTypes map[events.EventType]bool
	if raw := r.URL.Query().Get("types"); raw != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(raw, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Client connected to event stream")

	// Buffered so a slow client drops events instead of blocking emitters
	eventChan := make(chan *events.Event, 100)
	unsubscribe := h.bus.SubscribeAll(func(event *events.Event) {
		if allowedTypes != nil && !allowedTypes[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Debug().Str("type", string(event.Type)).Msg("Dropped event for slow client")
		}
	})
	defer unsubscribe()

	ctx := r.Context()

	// Reads are discarded but keep close/ping handling alive and end the
	// session when the client goes away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-readDone:
			return
		case event := <-eventChan:
			if err := h.writeEvent(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Event write failed, closing stream")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) writeEvent(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
