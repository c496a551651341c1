package www

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fleettrack/dispatch"
)

type createAssignmentRequest struct {
	OrderID             int64      `json:"order_id"`
	TruckID             int64      `json:"truck_id"`
	WarehouseID         int64      `json:"warehouse_id"`
	DriverName          string     `json:"driver_name"`
	DriverPhone         string     `json:"driver_phone"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

func (h *Handlers) apiCreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	a, err := h.engine.Dispatcher().Create(dispatch.CreateRequest{
		OrderID:             req.OrderID,
		TruckID:             req.TruckID,
		WarehouseID:         req.WarehouseID,
		DriverName:          req.DriverName,
		DriverPhone:         req.DriverPhone,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		Notes:               req.Notes,
	})
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	h.jsonOK(w, a)
}

func (h *Handlers) apiListAssignments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	assignments, err := h.engine.DB().ListAssignments(status, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, assignments)
}

func (h *Handlers) apiGetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.DB().GetAssignmentByRef(chi.URLParam(r, "ref"))
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	history, _ := h.engine.DB().ListAssignmentHistory(a.ID)
	effective, _ := h.engine.Dispatcher().EffectiveStatus(a)
	h.jsonOK(w, map[string]any{
		"assignment":       a,
		"effective_status": effective,
		"history":          history,
	})
}

func (h *Handlers) apiMarkPickup(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Dispatcher().MarkPickup(chi.URLParam(r, "ref"))
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	h.jsonOK(w, a)
}

func (h *Handlers) apiMarkDelivered(w http.ResponseWriter, r *http.Request) {
	a, err := h.engine.Dispatcher().MarkDelivered(chi.URLParam(r, "ref"))
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	h.jsonOK(w, a)
}

func (h *Handlers) apiCancelAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	a, err := h.engine.Dispatcher().Cancel(chi.URLParam(r, "ref"), req.Reason)
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	h.jsonOK(w, a)
}

func (h *Handlers) apiUpdateAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TruckID             *int64     `json:"truck_id,omitempty"`
		WarehouseID         *int64     `json:"warehouse_id,omitempty"`
		DriverName          *string    `json:"driver_name,omitempty"`
		DriverPhone         *string    `json:"driver_phone,omitempty"`
		Notes               *string    `json:"notes,omitempty"`
		EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	a, err := h.engine.Dispatcher().Update(chi.URLParam(r, "ref"), dispatch.UpdatePatch{
		TruckID:             req.TruckID,
		WarehouseID:         req.WarehouseID,
		DriverName:          req.DriverName,
		DriverPhone:         req.DriverPhone,
		Notes:               req.Notes,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
	})
	if err != nil {
		h.jsonDomainError(w, err)
		return
	}
	h.jsonOK(w, a)
}
