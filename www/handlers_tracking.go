package www

import (
	"encoding/json"
	"net/http"
	"time"

	"fleettrack/ingest"
)

type locationReportRequest struct {
	TruckID       int64     `json:"truck_id"`
	AssignmentRef string    `json:"assignment_ref,omitempty"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	Speed         *float64  `json:"speed,omitempty"`
	Heading       *float64  `json:"heading,omitempty"`
	CapturedAt    time.Time `json:"captured_at"`
}

// apiLocationReport is the HTTP ingest path for driver devices. Accepted
// reports return 202; rejections that are part of normal operation (stale
// assignment, out-of-window capture time) also return 202 with the
// rejection reason so devices do not retry-storm.
func (h *Handlers) apiLocationReport(w http.ResponseWriter, r *http.Request) {
	var req locationReportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.CapturedAt.IsZero() {
		req.CapturedAt = time.Now()
	}

	res, err := h.engine.Ingestor().Ingest(ingest.Report{
		TruckID:       req.TruckID,
		AssignmentRef: req.AssignmentRef,
		Lat:           req.Lat,
		Lng:           req.Lng,
		Speed:         req.Speed,
		Heading:       req.Heading,
		CapturedAt:    req.CapturedAt,
		Identity:      bearerToken(r),
	})
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(res)
}

func (h *Handlers) apiTrackingSnapshot(w http.ResponseWriter, r *http.Request) {
	orderRef := r.URL.Query().Get("order_ref")
	if orderRef == "" {
		h.jsonError(w, "order_ref required", http.StatusBadRequest)
		return
	}
	snap, err := h.engine.Queries().Snapshot(orderRef)
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	h.jsonOK(w, snap)
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]any{
		"status":    "ok",
		"messaging": h.engine.MsgClient().IsConnected(),
	})
}
