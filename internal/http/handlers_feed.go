package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// handleTransactionFeed streams the owner's transaction list over SSE.
// Every change delivers the complete, freshly ordered list as one
// "snapshot" event; clients replace their local copy wholesale.
func (s *Server) handleTransactionFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	user := currentUser(r)
	snapshots, cancel, err := s.feed.Subscribe(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Feed subscription failed",
			"user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not open feed")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-snapshots:
			if !open {
				// hub closed the subscription, e.g. on logout
				return
			}
			payload, err := json.Marshal(toTransactionResponses(snap))
			if err != nil {
				slog.ErrorContext(r.Context(), "Snapshot encoding failed",
					"user_id", user.ID, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
