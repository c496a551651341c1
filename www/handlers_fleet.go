package www

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fleettrack/ingest"
	"fleettrack/store"
)

func (h *Handlers) apiListTrucks(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	trucks, err := h.engine.DB().ListTrucks(activeOnly)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, trucks)
}

func (h *Handlers) apiCreateTruck(w http.ResponseWriter, r *http.Request) {
	var t store.Truck
	if err := decodeJSON(r, &t); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	t.Active = true
	if err := h.engine.DB().CreateTruck(&t); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, t)
}

// apiTruckPositions returns the fleet's latest known positions from the
// live cache.
func (h *Handlers) apiTruckPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.engine.LiveState().GetAllLatest()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, positions)
}

func (h *Handlers) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.engine.DB().ListWarehouses()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, warehouses)
}

func (h *Handlers) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var wh store.Warehouse
	if err := decodeJSON(r, &wh); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().CreateWarehouse(&wh); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, wh)
}

func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	orders, err := h.engine.DB().ListOrders(status, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, orders)
}

func (h *Handlers) apiCreateOrder(w http.ResponseWriter, r *http.Request) {
	var o store.Order
	if err := decodeJSON(r, &o); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if o.Reference == "" {
		h.jsonError(w, "reference required", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().CreateOrder(&o); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, o)
}

func (h *Handlers) apiListDeviceTokens(w http.ResponseWriter, r *http.Request) {
	truckID, err := strconv.ParseInt(r.URL.Query().Get("truck_id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid truck_id", http.StatusBadRequest)
		return
	}
	tokens, err := h.engine.DB().ListDeviceTokens(truckID)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, tokens)
}

// apiCreateDeviceToken mints a token for a driver device. The raw token
// is returned once; only its hash is stored.
func (h *Handlers) apiCreateDeviceToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TruckID int64  `json:"truck_id"`
		Label   string `json:"label"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if _, err := h.engine.DB().GetTruck(req.TruckID); err != nil {
		h.jsonError(w, "truck not found", http.StatusNotFound)
		return
	}

	raw := uuid.New().String()
	tok := &store.DeviceToken{
		TokenHash: ingest.HashToken(raw),
		TruckID:   req.TruckID,
		Label:     req.Label,
	}
	if err := h.engine.DB().CreateDeviceToken(tok); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"id":       tok.ID,
		"truck_id": tok.TruckID,
		"label":    tok.Label,
		"token":    raw,
	})
}

func (h *Handlers) apiRevokeDeviceToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().RevokeDeviceToken(id); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "revoked"})
}
