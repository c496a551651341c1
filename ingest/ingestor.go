package ingest

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"fleettrack/config"
	"fleettrack/store"
	"fleettrack/track"
)

// Authorizer decides whether a reporting identity may submit locations
// for a truck. Authenticate runs before target resolution so callers
// without a valid identity learn nothing about which refs exist;
// Authorize checks the truck binding once the target is known. The web
// layer backs this with device tokens; the telemetry consumer trusts
// broker-level auth and uses AllowAll.
type Authorizer interface {
	Authenticate(identity string) (bool, error)
	Authorize(identity string, truckID int64) (bool, error)
}

// Emitter receives accepted location updates for fan-out. Emission is
// fire-and-forget: ingestion never waits on delivery.
type Emitter interface {
	EmitLocationUpdated(a *store.Assignment, orderRef string, loc store.CurrentLocation)
}

// LiveCache mirrors accepted positions into the latest-location cache.
type LiveCache interface {
	SetLatest(truckID int64, loc store.CurrentLocation) error
}

// Report is one GPS sample from a driver device. Either AssignmentRef or
// TruckID identifies the target; TruckID resolves through the truck's
// active assignment.
type Report struct {
	TruckID       int64
	AssignmentRef string
	Lat           float64
	Lng           float64
	Speed         *float64
	Heading       *float64
	CapturedAt    time.Time
	Identity      string
}

// Rejection reasons carried on non-fatal results.
const (
	ReasonStaleOrUnknown = "stale-or-unknown"
	ReasonOutOfWindow    = "out-of-window"
)

// Result reports the outcome of one ingest call. Rejections for stale or
// unknown targets are not errors: a route naturally winds down after
// delivery and the driver client should not see failures for it.
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	// Updated reports whether the current-location pointer moved; false
	// for out-of-order duplicates and terminal-assignment audit appends.
	Updated bool `json:"updated"`
}

type Ingestor struct {
	db      *store.DB
	cfg     *config.TrackingConfig
	auth    Authorizer
	emitter Emitter
	cache   LiveCache
	now     func() time.Time
}

func NewIngestor(db *store.DB, cfg *config.TrackingConfig, auth Authorizer, emitter Emitter, cache LiveCache) *Ingestor {
	return &Ingestor{db: db, cfg: cfg, auth: auth, emitter: emitter, cache: cache, now: time.Now}
}

// Ingest validates and persists one location report. Validation order:
// authentication, coordinate range, target resolution, truck binding,
// capture-time window. On acceptance the breadcrumb is always appended
// for audit; the current-location pointer moves only monotonically
// forward in capture time, which makes retries and out-of-order delivery
// safe.
func (i *Ingestor) Ingest(r Report) (Result, error) {
	authed, err := i.auth.Authenticate(r.Identity)
	if err != nil {
		return Result{}, fmt.Errorf("authenticate %q: %w", r.Identity, track.ErrUnavailable)
	}
	if !authed {
		return Result{}, fmt.Errorf("identity %q: %w", r.Identity, track.ErrUnauthorized)
	}

	if !(track.LatLng{Lat: r.Lat, Lng: r.Lng}).Valid() {
		return Result{}, fmt.Errorf("lat=%v lng=%v: %w", r.Lat, r.Lng, track.ErrInvalidLocation)
	}

	var target *store.Assignment
	if r.AssignmentRef != "" {
		target, err = i.db.GetAssignmentByRef(r.AssignmentRef)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return Result{Reason: ReasonStaleOrUnknown}, nil
			}
			return Result{}, err
		}
	} else {
		target, err = i.db.GetActiveAssignmentByTruck(r.TruckID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Printf("ingest: no active assignment for truck %d, report dropped", r.TruckID)
				return Result{Reason: ReasonStaleOrUnknown}, nil
			}
			return Result{}, err
		}
	}

	ok, err := i.auth.Authorize(r.Identity, target.TruckID)
	if err != nil {
		return Result{}, fmt.Errorf("authorize %q: %w", r.Identity, track.ErrUnavailable)
	}
	if !ok {
		return Result{}, fmt.Errorf("identity %q for truck %d: %w", r.Identity, target.TruckID, track.ErrUnauthorized)
	}

	now := i.now()
	if r.CapturedAt.After(now.Add(i.cfg.ClockSkewWindow)) || r.CapturedAt.Before(now.Add(-i.cfg.MaxReportAge)) {
		log.Printf("ingest: assignment %s report outside window (captured %s)", target.Ref, r.CapturedAt.Format(time.RFC3339))
		return Result{Reason: ReasonOutOfWindow}, nil
	}

	inserted, err := i.db.InsertBreadcrumb(&store.Breadcrumb{
		AssignmentID: target.ID,
		TruckID:      target.TruckID,
		Lat:          r.Lat,
		Lng:          r.Lng,
		Speed:        r.Speed,
		Heading:      r.Heading,
		CapturedAt:   r.CapturedAt,
	})
	if err != nil {
		return Result{}, err
	}
	if !inserted {
		// Duplicate retransmission within the dedup window; already applied.
		return Result{Accepted: true}, nil
	}

	// Terminal assignments keep their audit trail but the tracking
	// picture is frozen: no pointer update, no broadcast.
	if track.IsTerminal(target.Status) {
		return Result{Accepted: true}, nil
	}

	moved, err := i.db.UpdateAssignmentLocation(target.ID, r.Lat, r.Lng, r.Speed, r.Heading, r.CapturedAt)
	if err != nil {
		return Result{}, err
	}
	if !moved {
		return Result{Accepted: true}, nil
	}

	loc := store.CurrentLocation{
		Lat:        r.Lat,
		Lng:        r.Lng,
		Speed:      r.Speed,
		Heading:    r.Heading,
		CapturedAt: r.CapturedAt,
	}

	if _, err := i.db.UpdateTruckLocation(target.TruckID, r.Lat, r.Lng, r.Speed, r.Heading, r.CapturedAt); err != nil {
		log.Printf("ingest: truck %d location mirror: %v", target.TruckID, err)
	}
	if i.cache != nil {
		if err := i.cache.SetLatest(target.TruckID, loc); err != nil {
			log.Printf("ingest: live cache truck %d: %v", target.TruckID, err)
		}
	}

	if order, err := i.db.GetOrder(target.OrderID); err == nil {
		i.emitter.EmitLocationUpdated(target, order.Reference, loc)
	} else {
		log.Printf("ingest: order %d for event: %v", target.OrderID, err)
	}

	return Result{Accepted: true, Updated: true}, nil
}

// AllowAll authorizes every identity. Used where the transport already
// authenticated the device (broker credentials).
type AllowAll struct{}

func (AllowAll) Authenticate(string) (bool, error)     { return true, nil }
func (AllowAll) Authorize(string, int64) (bool, error) { return true, nil }
