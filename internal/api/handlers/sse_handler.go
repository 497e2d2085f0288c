package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
	"github.com/zatekoja/smartcare/backend/internal/domain/providers"
	"github.com/zatekoja/smartcare/backend/internal/infrastructure/observability"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams queue events to display boards over Server-Sent Events
type SSEHandler struct {
	eventBus    providers.EventBus
	departments map[string]bool
	heartbeat   time.Duration

	mu      sync.RWMutex
	clients map[string]int // channel -> connected clients
}

// NewSSEHandler creates a new SSE handler for the given departments
func NewSSEHandler(eventBus providers.EventBus, departments []entities.Department) *SSEHandler {
	known := make(map[string]bool, len(departments))
	for _, d := range departments {
		known[d.Name] = true
	}
	return &SSEHandler{
		eventBus:    eventBus,
		departments: known,
		heartbeat:   defaultHeartbeat,
		clients:     make(map[string]int),
	}
}

// SetHeartbeat changes the keep-alive interval
func (h *SSEHandler) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// StreamQueue handles GET /api/stream/queue[?types=checkin,called]
func (h *SSEHandler) StreamQueue(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, providers.EventChannelQueueUpdates, map[string]interface{}{})
}

// StreamDepartment handles GET /api/stream/queue/{department}
func (h *SSEHandler) StreamDepartment(w http.ResponseWriter, r *http.Request) {
	department := entities.NormalizeDepartment(r.PathValue("department"))
	if !h.departments[department] {
		respondWithError(w, http.StatusNotFound, "unknown department: "+r.PathValue("department"))
		return
	}
	h.stream(w, r, providers.GetDepartmentChannel(department), map[string]interface{}{
		"department": department,
	})
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, hello map[string]interface{}) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	logger := observability.LoggerFromContext(r.Context())
	types := parseTypes(r.URL.Query().Get("types"))

	events, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to queue events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	h.register(channel)
	defer h.unregister(channel)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello["timestamp"] = time.Now().UTC()
	h.sendEvent(w, "connected", "", hello)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("channel", channel).Msg("Display board disconnected")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", "", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil || (len(types) > 0 && !types[event.Type]) {
				continue
			}
			h.sendEvent(w, string(event.Type), event.ID, event)
			flusher.Flush()
		}
	}
}

// Stats handles GET /api/stream/stats
func (h *SSEHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	byChannel := make(map[string]int, len(h.clients))
	total := 0
	for ch, n := range h.clients {
		byChannel[ch] = n
		total += n
	}
	h.mu.RUnlock()

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"connected_clients": total,
		"by_channel":        byChannel,
	})
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, n := range h.clients {
		count += n
	}
	return count
}

func (h *SSEHandler) register(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[channel]++
}

func (h *SSEHandler) unregister(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[channel] <= 1 {
		delete(h.clients, channel)
		return
	}
	h.clients[channel]--
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType, id string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Warn().Err(err).Str("event_type", eventType).Msg("Failed to marshal event data")
		return
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func parseTypes(raw string) map[entities.QueueEventType]bool {
	if raw == "" {
		return nil
	}
	out := make(map[entities.QueueEventType]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out[entities.QueueEventType(strings.ToLower(t))] = true
		}
	}
	return out
}
