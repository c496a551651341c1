package query

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleettrack/config"
	"fleettrack/dispatch"
	"fleettrack/route"
	"fleettrack/store"
	"fleettrack/track"
)

// Snapshot is the full tracking picture for one order. The SSE stream's
// initial frame and the polling endpoint serve the same shape, so a
// client can switch between them without new parsing code.
type Snapshot struct {
	OrderRef      string          `json:"order_ref"`
	OrderStatus   string          `json:"order_status"`
	DealerName    string          `json:"dealer_name,omitempty"`
	HasAssignment bool            `json:"has_assignment"`
	Assignment    *AssignmentView `json:"assignment,omitempty"`
	Route         *route.Route    `json:"route,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// AssignmentView flattens the assignment record plus its resolved
// collaborators for display.
type AssignmentView struct {
	Ref                 string                 `json:"ref"`
	Status              string                 `json:"status"`
	StoredStatus        string                 `json:"stored_status"`
	DriverName          string                 `json:"driver_name"`
	DriverPhone         string                 `json:"driver_phone"`
	TruckName           string                 `json:"truck_name,omitempty"`
	TruckPlate          string                 `json:"truck_plate,omitempty"`
	WarehouseName       string                 `json:"warehouse_name,omitempty"`
	Current             *store.CurrentLocation `json:"current,omitempty"`
	AssignedAt          time.Time              `json:"assigned_at"`
	PickupAt            *time.Time             `json:"pickup_at,omitempty"`
	DeliveredAt         *time.Time             `json:"delivered_at,omitempty"`
	EstimatedDeliveryAt *time.Time             `json:"estimated_delivery_at,omitempty"`
	CancelReason        string                 `json:"cancel_reason,omitempty"`
}

type Service struct {
	db       *store.DB
	cfg      *config.TrackingConfig
	dispatch *dispatch.Dispatcher
}

func NewService(db *store.DB, cfg *config.TrackingConfig, d *dispatch.Dispatcher) *Service {
	return &Service{db: db, cfg: cfg, dispatch: d}
}

// Snapshot builds the tracking picture for an order reference. Unknown
// orders are ErrNotFound; a known order that was never assigned gets a
// snapshot with HasAssignment false rather than an error, because "not
// dispatched yet" is a state the tracking page has to render.
func (s *Service) Snapshot(orderRef string) (*Snapshot, error) {
	order, err := s.db.GetOrderByReference(orderRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %q: %w", orderRef, track.ErrNotFound)
		}
		return nil, err
	}

	snap := &Snapshot{
		OrderRef:    order.Reference,
		OrderStatus: order.Status,
		DealerName:  order.DealerName,
		GeneratedAt: time.Now().UTC(),
	}

	a, err := s.db.GetActiveAssignmentByOrder(order.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// Fall back to the most recent terminal one; delivered and
		// cancelled orders still show their final picture.
		a, err = s.db.GetLatestAssignmentByOrder(order.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return snap, nil
		}
	}
	if err != nil {
		return nil, err
	}
	snap.HasAssignment = true

	effective, err := s.dispatch.EffectiveStatus(a)
	if err != nil {
		return nil, err
	}

	view := &AssignmentView{
		Ref:                 a.Ref,
		Status:              effective,
		StoredStatus:        a.Status,
		DriverName:          a.DriverName,
		DriverPhone:         a.DriverPhone,
		Current:             a.CurrentLocation(),
		AssignedAt:          a.AssignedAt,
		PickupAt:            a.PickupAt,
		DeliveredAt:         a.DeliveredAt,
		EstimatedDeliveryAt: a.EstimatedDeliveryAt,
		CancelReason:        a.CancelReason,
	}

	var warehousePt *track.LatLng
	if wh, err := s.db.GetWarehouse(a.WarehouseID); err == nil {
		view.WarehouseName = wh.Name
		warehousePt = &track.LatLng{Lat: wh.Lat, Lng: wh.Lng}
	}
	if truck, err := s.db.GetTruck(a.TruckID); err == nil {
		view.TruckName = truck.Name
		view.TruckPlate = truck.LicensePlate
	}
	snap.Assignment = view

	var destPt *track.LatLng
	if order.DestLat != nil && order.DestLng != nil {
		destPt = &track.LatLng{Lat: *order.DestLat, Lng: *order.DestLng}
	}

	crumbs, err := s.db.ListBreadcrumbs(a.ID, s.cfg.BreadcrumbLimit)
	if err != nil {
		return nil, err
	}

	region := track.BoundingBox{
		MinLat: s.cfg.DefaultRegion.MinLat, MinLng: s.cfg.DefaultRegion.MinLng,
		MaxLat: s.cfg.DefaultRegion.MaxLat, MaxLng: s.cfg.DefaultRegion.MaxLng,
	}
	r := route.Build(route.Input{
		Assignment:  a,
		Warehouse:   warehousePt,
		Destination: destPt,
		Breadcrumbs: crumbs,
	}, region)
	snap.Route = &r

	return snap, nil
}
