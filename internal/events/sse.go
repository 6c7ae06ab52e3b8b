package events

import (
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval is how often an idle SSE connection gets a keep-alive
// event so proxies don't reap it.
const heartbeatInterval = 30 * time.Second

// SSEHandler streams hub events to the client as Server-Sent Events until
// the client disconnects.
func (h *Hub) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := h.Subscribe()
		defer h.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case at := <-heartbeat.C:
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %q\n\n", TopicHeartbeat, at.UTC().Format(time.RFC3339)); err != nil {
					return
				}
				flusher.Flush()
			case event, ok := <-c:
				if !ok {
					// Channel closed, exit gracefully
					return
				}
				payload, ok := encode(event)
				if !ok {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}
