package dispatch

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fleettrack/store"
	"fleettrack/track"
)

// OrderApproval is the order/approval service contract consulted before
// an order may be dispatched.
type OrderApproval interface {
	IsFulfillable(orderID int64) (bool, error)
}

// Dispatcher owns the assignment lifecycle. All transitions go through
// compare-and-swap updates so concurrent dispatch actions on the same
// assignment resolve to one winner and idempotent retries.
type Dispatcher struct {
	db       *store.DB
	approval OrderApproval
	emitter  Emitter
}

func NewDispatcher(db *store.DB, approval OrderApproval, emitter Emitter) *Dispatcher {
	return &Dispatcher{db: db, approval: approval, emitter: emitter}
}

type CreateRequest struct {
	OrderID             int64
	TruckID             int64
	WarehouseID         int64
	DriverName          string
	DriverPhone         string
	EstimatedDeliveryAt *time.Time
	Notes               string
}

// Create pairs a truck with an order for one delivery. Fails with
// track.ErrConflict when the order already has an active assignment,
// track.ErrNotFound for unknown references, and track.ErrInvalidState
// when the order is not approved for fulfillment.
func (d *Dispatcher) Create(req CreateRequest) (*store.Assignment, error) {
	truck, err := d.db.GetTruck(req.TruckID)
	if err != nil {
		return nil, fmt.Errorf("truck %d: %w", req.TruckID, track.ErrNotFound)
	}
	if _, err := d.db.GetWarehouse(req.WarehouseID); err != nil {
		return nil, fmt.Errorf("warehouse %d: %w", req.WarehouseID, track.ErrNotFound)
	}
	order, err := d.db.GetOrder(req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", req.OrderID, track.ErrNotFound)
	}

	ok, err := d.approval.IsFulfillable(order.ID)
	if err != nil {
		return nil, fmt.Errorf("approval check for order %d: %w", order.ID, track.ErrUnavailable)
	}
	if !ok {
		return nil, fmt.Errorf("order %s not approved for fulfillment: %w", order.Reference, track.ErrInvalidState)
	}

	if existing, err := d.db.GetActiveAssignmentByOrder(order.ID); err == nil {
		return nil, fmt.Errorf("order %s already has active assignment %s: %w", order.Reference, existing.Ref, track.ErrConflict)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup active assignment: %w", err)
	}

	a := &store.Assignment{
		Ref:                 uuid.New().String(),
		OrderID:             order.ID,
		TruckID:             truck.ID,
		WarehouseID:         req.WarehouseID,
		DriverName:          req.DriverName,
		DriverPhone:         req.DriverPhone,
		Status:              track.StatusAssigned,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		Notes:               req.Notes,
		// The truck's last known position is the planned route origin.
		OriginLat: truck.LastLat,
		OriginLng: truck.LastLng,
	}
	if err := d.db.CreateAssignment(a); err != nil {
		// The one-active-per-order unique index closes the race two
		// concurrent creates can win past the lookup above.
		if store.IsUniqueViolation(err) {
			return nil, fmt.Errorf("order %s already has an active assignment: %w", order.Reference, track.ErrConflict)
		}
		return nil, err
	}

	// Informational only: dispatch discipline, not a hard lock.
	if err := d.db.UpdateTruckOpStatus(truck.ID, store.TruckAssigned); err != nil {
		log.Printf("dispatch: truck %d op status: %v", truck.ID, err)
	}

	created, err := d.db.GetAssignment(a.ID)
	if err != nil {
		return nil, err
	}
	d.emitter.EmitStatusChanged(created, order.Reference, "", track.StatusAssigned, "assignment created")
	return created, nil
}

// MarkPickup records that the driver collected the load. Legal only from
// assigned; retrying after success is a no-op returning current state.
func (d *Dispatcher) MarkPickup(ref string) (*store.Assignment, error) {
	return d.transition(ref, track.StatusPickedUp, "pickup recorded")
}

// MarkDelivered completes the delivery. Legal from picked_up (including
// its derived in_transit reading); terminal.
func (d *Dispatcher) MarkDelivered(ref string) (*store.Assignment, error) {
	a, err := d.transition(ref, track.StatusDelivered, "delivery recorded")
	if err != nil {
		return nil, err
	}
	if err := d.db.UpdateTruckOpStatus(a.TruckID, store.TruckIdle); err != nil {
		log.Printf("dispatch: truck %d op status: %v", a.TruckID, err)
	}
	return a, nil
}

// Cancel abandons the delivery. Legal from assigned or picked_up, but not
// once the truck is moving: a picked-up assignment with breadcrumbs reads
// as in_transit and can no longer be cancelled.
func (d *Dispatcher) Cancel(ref string, reason string) (*store.Assignment, error) {
	a, err := d.db.GetAssignmentByRef(ref)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", ref, track.ErrNotFound)
	}
	if a.Status == track.StatusCancelled {
		return a, nil // idempotent retry
	}
	eff, err := d.EffectiveStatus(a)
	if err != nil {
		return nil, err
	}
	if eff == track.StatusInTransit {
		return nil, fmt.Errorf("assignment %s is in transit: %w", ref, track.ErrInvalidTransition)
	}
	if !track.CanTransition(a.Status, track.StatusCancelled) {
		return nil, fmt.Errorf("cancel from %s: %w", a.Status, track.ErrInvalidTransition)
	}
	if reason == "" {
		reason = "cancelled by dispatch"
	}
	applied, err := d.db.TransitionAssignment(a.ID, track.LegalFrom(track.StatusCancelled), track.StatusCancelled, reason)
	if err != nil {
		return nil, err
	}
	updated, err := d.db.GetAssignment(a.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost a race; treat a concurrent cancel as success, anything else as illegal.
		if updated.Status == track.StatusCancelled {
			return updated, nil
		}
		return nil, fmt.Errorf("cancel from %s: %w", updated.Status, track.ErrInvalidTransition)
	}
	if err := d.db.UpdateTruckOpStatus(updated.TruckID, store.TruckIdle); err != nil {
		log.Printf("dispatch: truck %d op status: %v", updated.TruckID, err)
	}
	d.emitStatus(updated, a.Status, reason)
	return updated, nil
}

type UpdatePatch struct {
	TruckID             *int64
	WarehouseID         *int64
	DriverName          *string
	DriverPhone         *string
	Notes               *string
	EstimatedDeliveryAt *time.Time
}

// Update patches dispatch-mutable fields. Terminal assignments are
// immutable and fail with track.ErrInvalidState.
func (d *Dispatcher) Update(ref string, patch UpdatePatch) (*store.Assignment, error) {
	a, err := d.db.GetAssignmentByRef(ref)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", ref, track.ErrNotFound)
	}
	if track.IsTerminal(a.Status) {
		return nil, fmt.Errorf("assignment %s is %s: %w", ref, a.Status, track.ErrInvalidState)
	}
	if patch.TruckID != nil {
		if _, err := d.db.GetTruck(*patch.TruckID); err != nil {
			return nil, fmt.Errorf("truck %d: %w", *patch.TruckID, track.ErrNotFound)
		}
	}
	if patch.WarehouseID != nil {
		if _, err := d.db.GetWarehouse(*patch.WarehouseID); err != nil {
			return nil, fmt.Errorf("warehouse %d: %w", *patch.WarehouseID, track.ErrNotFound)
		}
	}
	applied, err := d.db.UpdateAssignmentFields(a.ID, patch.TruckID, patch.WarehouseID,
		patch.DriverName, patch.DriverPhone, patch.Notes, patch.EstimatedDeliveryAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("assignment %s became terminal: %w", ref, track.ErrInvalidState)
	}
	return d.db.GetAssignment(a.ID)
}

// EffectiveStatus resolves the viewer-facing status: picked_up plus
// post-pickup movement reads as in_transit.
func (d *Dispatcher) EffectiveStatus(a *store.Assignment) (string, error) {
	if a.Status != track.StatusPickedUp || a.PickupAt == nil {
		return a.Status, nil
	}
	n, err := d.db.CountBreadcrumbsAfter(a.ID, *a.PickupAt)
	if err != nil {
		return a.Status, err
	}
	return track.EffectiveStatus(a.Status, n > 0), nil
}

func (d *Dispatcher) transition(ref, target, detail string) (*store.Assignment, error) {
	a, err := d.db.GetAssignmentByRef(ref)
	if err != nil {
		return nil, fmt.Errorf("assignment %s: %w", ref, track.ErrNotFound)
	}
	if a.Status == target {
		return a, nil // idempotent retry
	}
	if !track.CanTransition(a.Status, target) {
		return nil, fmt.Errorf("%s from %s: %w", target, a.Status, track.ErrInvalidTransition)
	}
	applied, err := d.db.TransitionAssignment(a.ID, track.LegalFrom(target), target, detail)
	if err != nil {
		return nil, err
	}
	updated, err := d.db.GetAssignment(a.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		if updated.Status == target {
			return updated, nil
		}
		return nil, fmt.Errorf("%s from %s: %w", target, updated.Status, track.ErrInvalidTransition)
	}
	d.emitStatus(updated, a.Status, detail)
	return updated, nil
}

func (d *Dispatcher) emitStatus(a *store.Assignment, oldStatus, detail string) {
	order, err := d.db.GetOrder(a.OrderID)
	if err != nil {
		log.Printf("dispatch: order %d for event: %v", a.OrderID, err)
		return
	}
	d.emitter.EmitStatusChanged(a, order.Reference, oldStatus, a.Status, detail)
}
