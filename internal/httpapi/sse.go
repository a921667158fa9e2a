package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const streamKeepAlive = 15 * time.Second

// handleTaskStream pushes a task's progress events over SSE. The client
// first receives a snapshot of the current task record, then every event the
// broadcaster delivers, and the stream ends after the terminal event. A
// client that reconnects later re-reads the task record instead of replaying
// missed events.
func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request, taskID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	task, err := s.engine.Status(taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	events, cancel, err := s.engine.Subscribe(taskID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(name string, payload any) bool {
		data, err := json.Marshal(payload)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("snapshot", task) {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if !send(string(event.Type), event) {
				return
			}
		}
	}
}
