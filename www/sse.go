package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
)

// handleTrackingStream serves the per-order SSE channel. The first frame
// is a full tracking snapshot; afterwards the client receives status and
// location events as they happen, plus keepalives. The subscription is
// torn down when the request context ends, whichever side closes first.
func (h *Handlers) handleTrackingStream(w http.ResponseWriter, r *http.Request) {
	orderRef := r.URL.Query().Get("order_ref")
	if orderRef == "" {
		http.Error(w, "order_ref required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe before reading the snapshot: an event raised while the
	// snapshot is being built lands in the subscriber buffer and is
	// delivered after the initial frame. A duplicate is harmless, a gap
	// between the snapshot and the first live event is not.
	sub := h.engine.Hub().Subscribe(orderRef)
	defer h.engine.Hub().Unsubscribe(sub)

	snap, err := h.engine.Queries().Snapshot(orderRef)
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	initial, err := json.Marshal(snap)
	if err != nil {
		log.Printf("sse: marshal snapshot: %v", err)
		return
	}
	if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", initial); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-sub.C:
			if !open {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				log.Printf("sse: write error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}
