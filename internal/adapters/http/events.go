package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// streamEvents sends a snapshot of the queue followed by live item events and
// notices as server-sent events until the client disconnects.
func (rt *Router) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	events, unsubscribe := rt.queue.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", map[string]any{"items": rt.queue.List()}); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(rt.cfg.EventKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, string(event.Type), event); err != nil {
				rt.logger.Warn("event_stream_write_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

