// Package realtime fans progress updates out to open event streams and in-process
// listeners of the same instance.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

const (
	listenerBuffer    = 16
	heartbeatInterval = 15 * time.Second
)

// Listener is one attachment to the hub. Messages arrive on C in broadcast order; C is
// closed by Detach.
type Listener struct {
	ID     string
	UserID string
	C      <-chan SSEMessage

	out      chan SSEMessage
	channels []string
	detach   sync.Once
}

type Hub struct {
	log       *logger.Logger
	heartbeat time.Duration

	mu        sync.RWMutex
	listeners map[string]map[*Listener]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:       log.With("component", "ProgressHub"),
		heartbeat: heartbeatInterval,
		listeners: map[string]map[*Listener]struct{}{},
	}
}

// Attach registers a listener on every non-blank channel.
func (h *Hub) Attach(userID string, channels ...string) *Listener {
	out := make(chan SSEMessage, listenerBuffer)
	l := &Listener{ID: uuid.NewString(), UserID: userID, C: out, out: out}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		if ch = strings.TrimSpace(ch); ch == "" {
			continue
		}
		set, ok := h.listeners[ch]
		if !ok {
			set = map[*Listener]struct{}{}
			h.listeners[ch] = set
		}
		set[l] = struct{}{}
		l.channels = append(l.channels, ch)
	}
	return l
}

// Detach unregisters l and closes its channel. Repeated calls are no-ops.
func (h *Hub) Detach(l *Listener) {
	l.detach.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, ch := range l.channels {
			delete(h.listeners[ch], l)
			if len(h.listeners[ch]) == 0 {
				delete(h.listeners, ch)
			}
		}
		close(l.out)
	})
}

func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[channel])
}

// Broadcast hands msg to every listener on msg.Channel without blocking. A listener whose
// buffer is full misses the message.
func (h *Hub) Broadcast(msg SSEMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.listeners[msg.Channel] {
		select {
		case l.out <- msg:
		default:
			h.log.Warn("listener buffer full, dropping message", "listener_id", l.ID, "channel", msg.Channel)
		}
	}
}

// Subscribe runs fn for each message on channel from a dedicated goroutine. The returned
// func detaches and may be called more than once.
func (h *Hub) Subscribe(userID, channel string, fn func(SSEMessage)) func() {
	l := h.Attach(userID, channel)
	go func() {
		for msg := range l.C {
			fn(msg)
		}
	}()
	return func() { h.Detach(l) }
}

// Stream writes l's messages as server-sent events until the request ends or l is
// detached. Comment lines keep idle proxies from closing the connection.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, l *Listener) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	tick := time.NewTicker(h.heartbeat)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			fmt.Fprint(w, ": ping\n\n")
		case msg, open := <-l.C:
			if !open {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("unencodable stream message", "event", msg.Event, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, payload)
		}
		flusher.Flush()
	}
}
