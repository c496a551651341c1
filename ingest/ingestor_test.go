package ingest

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fleettrack/config"
	"fleettrack/store"
	"fleettrack/track"
)

// --- Mocks ---

type denyAll struct{}

func (denyAll) Authenticate(string) (bool, error)     { return false, nil }
func (denyAll) Authorize(string, int64) (bool, error) { return false, nil }

type failingAuth struct{}

func (failingAuth) Authenticate(string) (bool, error) {
	return false, errors.New("token store down")
}

func (failingAuth) Authorize(string, int64) (bool, error) {
	return false, errors.New("token store down")
}

type mockEmitter struct {
	updates []emittedUpdate
}

type emittedUpdate struct {
	orderRef string
	loc      store.CurrentLocation
}

func (m *mockEmitter) EmitLocationUpdated(_ *store.Assignment, orderRef string, loc store.CurrentLocation) {
	m.updates = append(m.updates, emittedUpdate{orderRef, loc})
}

type mockCache struct {
	set map[int64]store.CurrentLocation
}

func (m *mockCache) SetLatest(truckID int64, loc store.CurrentLocation) error {
	if m.set == nil {
		m.set = make(map[int64]store.CurrentLocation)
	}
	m.set[truckID] = loc
	return nil
}

// --- Helpers ---

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedAssignment creates a truck, warehouse, approved order and one
// assignment walked into the given status.
func seedAssignment(t *testing.T, db *store.DB, status string) *store.Assignment {
	t.Helper()
	truck := &store.Truck{Name: "WB-07", LicensePlate: "WB07XX4321", Active: true}
	if err := db.CreateTruck(truck); err != nil {
		t.Fatalf("create truck: %v", err)
	}
	wh := &store.Warehouse{Name: "Howrah Depot", Lat: 22.59, Lng: 88.31}
	if err := db.CreateWarehouse(wh); err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	dlat, dlng := 22.51, 88.33
	order := &store.Order{Reference: "ORD-3001", Status: store.OrderApproved, DealerName: "Garia Traders",
		DestLat: &dlat, DestLng: &dlng}
	if err := db.CreateOrder(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	a := &store.Assignment{
		Ref: "asg-ingest-1", OrderID: order.ID, TruckID: truck.ID, WarehouseID: wh.ID,
		DriverName: "A. Mondal", Status: track.StatusAssigned,
	}
	if err := db.CreateAssignment(a); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	var path []string
	switch status {
	case track.StatusPickedUp:
		path = []string{track.StatusPickedUp}
	case track.StatusDelivered:
		path = []string{track.StatusPickedUp, track.StatusDelivered}
	case track.StatusCancelled:
		path = []string{track.StatusCancelled}
	}
	for _, next := range path {
		applied, err := db.TransitionAssignment(a.ID, track.LegalFrom(next), next, "test")
		if err != nil || !applied {
			t.Fatalf("transition to %s: applied=%v err=%v", next, applied, err)
		}
	}
	got, err := db.GetAssignment(a.ID)
	if err != nil {
		t.Fatalf("reload assignment: %v", err)
	}
	return got
}

func newTestIngestor(t *testing.T, db *store.DB, auth Authorizer) (*Ingestor, *mockEmitter, *mockCache) {
	t.Helper()
	cfg := config.Defaults().Tracking
	em := &mockEmitter{}
	cache := &mockCache{}
	ing := NewIngestor(db, &cfg, auth, em, cache)
	ing.now = func() time.Time { return testNow }
	return ing, em, cache
}

func report(a *store.Assignment, lat, lng float64, capturedAt time.Time) Report {
	return Report{
		AssignmentRef: a.Ref,
		Lat:           lat,
		Lng:           lng,
		CapturedAt:    capturedAt,
		Identity:      "device-1",
	}
}

// --- Tests ---

func TestIngestAccepted(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, em, cache := newTestIngestor(t, db, AllowAll{})

	res, err := ing.Ingest(report(a, 22.55, 88.34, testNow.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.Accepted || !res.Updated {
		t.Errorf("Result = %+v, want accepted and updated", res)
	}

	got, _ := db.GetAssignment(a.ID)
	if got.CurrentLat == nil || *got.CurrentLat != 22.55 {
		t.Errorf("CurrentLat = %v, want 22.55", got.CurrentLat)
	}

	crumbs, _ := db.ListBreadcrumbs(a.ID, 10)
	if len(crumbs) != 1 {
		t.Errorf("breadcrumbs = %d, want 1", len(crumbs))
	}

	if len(em.updates) != 1 || em.updates[0].orderRef != "ORD-3001" {
		t.Errorf("emitted = %+v, want one update for ORD-3001", em.updates)
	}
	if _, ok := cache.set[a.TruckID]; !ok {
		t.Error("live cache was not updated")
	}
}

func TestIngestResolvesByTruckID(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, em, _ := newTestIngestor(t, db, AllowAll{})

	res, err := ing.Ingest(Report{
		TruckID: a.TruckID, Lat: 22.56, Lng: 88.35,
		CapturedAt: testNow.Add(-time.Minute), Identity: "device-1",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.Accepted {
		t.Errorf("Result = %+v", res)
	}
	if len(em.updates) != 1 {
		t.Errorf("emitted %d updates, want 1", len(em.updates))
	}
}

func TestIngestUnknownRefRejectedNotError(t *testing.T) {
	db := testDB(t)
	seedAssignment(t, db, track.StatusPickedUp)
	ing, em, _ := newTestIngestor(t, db, AllowAll{})

	res, err := ing.Ingest(Report{
		AssignmentRef: "no-such-ref", Lat: 22.5, Lng: 88.3,
		CapturedAt: testNow, Identity: "device-1",
	})
	if err != nil {
		t.Fatalf("unknown ref should not be an error, got %v", err)
	}
	if res.Accepted || res.Reason != ReasonStaleOrUnknown {
		t.Errorf("Result = %+v, want rejected stale-or-unknown", res)
	}
	if len(em.updates) != 0 {
		t.Error("rejected report must not emit")
	}
}

func TestIngestNoActiveAssignmentForTruck(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusDelivered)
	ing, _, _ := newTestIngestor(t, db, AllowAll{})

	// By truck ID there is nothing active to attach to.
	res, err := ing.Ingest(Report{
		TruckID: a.TruckID, Lat: 22.5, Lng: 88.3,
		CapturedAt: testNow, Identity: "device-1",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Accepted || res.Reason != ReasonStaleOrUnknown {
		t.Errorf("Result = %+v, want rejected stale-or-unknown", res)
	}
}

func TestIngestUnauthorized(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, _, _ := newTestIngestor(t, db, denyAll{})

	_, err := ing.Ingest(report(a, 22.5, 88.3, testNow))
	if !errors.Is(err, track.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestIngestAuthorizerUnavailable(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, _, _ := newTestIngestor(t, db, failingAuth{})

	_, err := ing.Ingest(report(a, 22.5, 88.3, testNow))
	if !errors.Is(err, track.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestIngestInvalidCoordinates(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, _, _ := newTestIngestor(t, db, AllowAll{})

	for _, bad := range []struct{ lat, lng float64 }{
		{95, 88.3}, {-95, 88.3}, {22.5, 181}, {22.5, -181},
	} {
		_, err := ing.Ingest(report(a, bad.lat, bad.lng, testNow))
		if !errors.Is(err, track.ErrInvalidLocation) {
			t.Errorf("lat=%v lng=%v: err = %v, want ErrInvalidLocation", bad.lat, bad.lng, err)
		}
	}

	crumbs, _ := db.ListBreadcrumbs(a.ID, 10)
	if len(crumbs) != 0 {
		t.Error("invalid reports must not leave breadcrumbs")
	}
}

func TestIngestOutOfWindow(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, em, _ := newTestIngestor(t, db, AllowAll{})

	cfg := config.Defaults().Tracking
	cases := []struct {
		name       string
		capturedAt time.Time
	}{
		{"too far in the future", testNow.Add(cfg.ClockSkewWindow + time.Minute)},
		{"too old", testNow.Add(-cfg.MaxReportAge - time.Minute)},
	}
	for _, tc := range cases {
		res, err := ing.Ingest(report(a, 22.5, 88.3, tc.capturedAt))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Accepted || res.Reason != ReasonOutOfWindow {
			t.Errorf("%s: Result = %+v, want rejected out-of-window", tc.name, res)
		}
	}
	if len(em.updates) != 0 {
		t.Error("out-of-window reports must not emit")
	}
}

func TestIngestMonotonicMerge(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, em, _ := newTestIngestor(t, db, AllowAll{})

	t1 := testNow.Add(-3 * time.Minute)
	t2 := testNow.Add(-2 * time.Minute)
	t3 := testNow.Add(-1 * time.Minute)

	// Out-of-order arrival T2, T1, T3: the pointer must track capture
	// time, not arrival order.
	for _, step := range []struct {
		lat        float64
		capturedAt time.Time
		wantUpdate bool
	}{
		{22.52, t2, true},
		{22.51, t1, false},
		{22.53, t3, true},
	} {
		res, err := ing.Ingest(report(a, step.lat, 88.3, step.capturedAt))
		if err != nil {
			t.Fatalf("ingest %v: %v", step.capturedAt, err)
		}
		if !res.Accepted {
			t.Fatalf("ingest %v rejected: %+v", step.capturedAt, res)
		}
		if res.Updated != step.wantUpdate {
			t.Errorf("captured %v: Updated = %v, want %v", step.capturedAt, res.Updated, step.wantUpdate)
		}
	}

	got, _ := db.GetAssignment(a.ID)
	if got.CurrentLat == nil || *got.CurrentLat != 22.53 {
		t.Errorf("CurrentLat = %v, want T3's 22.53", got.CurrentLat)
	}

	// All three survive in the audit trail; only the two that moved the
	// pointer were broadcast.
	crumbs, _ := db.ListBreadcrumbs(a.ID, 10)
	if len(crumbs) != 3 {
		t.Errorf("breadcrumbs = %d, want 3", len(crumbs))
	}
	if len(em.updates) != 2 {
		t.Errorf("emitted %d updates, want 2", len(em.updates))
	}
}

func TestIngestDuplicateRetransmission(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, em, _ := newTestIngestor(t, db, AllowAll{})

	at := testNow.Add(-time.Minute)
	ing.Ingest(report(a, 22.55, 88.34, at))

	res, err := ing.Ingest(report(a, 22.55, 88.34, at))
	if err != nil {
		t.Fatalf("retransmit: %v", err)
	}
	if !res.Accepted || res.Updated {
		t.Errorf("Result = %+v, want accepted without update", res)
	}

	crumbs, _ := db.ListBreadcrumbs(a.ID, 10)
	if len(crumbs) != 1 {
		t.Errorf("breadcrumbs = %d, want 1 after dedup", len(crumbs))
	}
	if len(em.updates) != 1 {
		t.Errorf("emitted %d updates, want 1", len(em.updates))
	}
}

func TestIngestTerminalAssignmentAuditOnly(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusDelivered)
	ing, em, cache := newTestIngestor(t, db, AllowAll{})

	// Addressed by ref, a late report for a finished delivery is kept
	// for audit but the tracking picture stays frozen.
	res, err := ing.Ingest(report(a, 22.49, 88.32, testNow.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.Accepted || res.Updated {
		t.Errorf("Result = %+v, want accepted without update", res)
	}

	crumbs, _ := db.ListBreadcrumbs(a.ID, 10)
	if len(crumbs) != 1 {
		t.Errorf("breadcrumbs = %d, want 1", len(crumbs))
	}
	got, _ := db.GetAssignment(a.ID)
	if got.CurrentLat != nil {
		t.Errorf("CurrentLat = %v, want untouched nil", got.CurrentLat)
	}
	if len(em.updates) != 0 || len(cache.set) != 0 {
		t.Error("terminal ingest must not emit or touch the cache")
	}
}

func TestHashToken(t *testing.T) {
	h := HashToken("secret-token")
	if len(h) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h))
	}
	if h == HashToken("other-token") {
		t.Error("different tokens must hash differently")
	}
	if h != HashToken("secret-token") {
		t.Error("hashing must be deterministic")
	}
}

func TestTokenAuthorizer(t *testing.T) {
	db := testDB(t)
	truck := &store.Truck{Name: "WB-09", LicensePlate: "WB09ZZ0009", Active: true}
	if err := db.CreateTruck(truck); err != nil {
		t.Fatalf("create truck: %v", err)
	}
	other := &store.Truck{Name: "WB-10", LicensePlate: "WB10ZZ0010", Active: true}
	if err := db.CreateTruck(other); err != nil {
		t.Fatalf("create truck: %v", err)
	}

	tok := &store.DeviceToken{TruckID: truck.ID, TokenHash: HashToken("good"), Label: "cab unit"}
	if err := db.CreateDeviceToken(tok); err != nil {
		t.Fatalf("create token: %v", err)
	}

	auth := NewTokenAuthorizer(db)

	if ok, err := auth.Authenticate("good"); err != nil || !ok {
		t.Errorf("authenticate valid token: ok=%v err=%v", ok, err)
	}
	if ok, err := auth.Authenticate("bad"); err != nil || ok {
		t.Errorf("authenticate unknown token: ok=%v err=%v, want deny without error", ok, err)
	}
	if ok, err := auth.Authorize("good", truck.ID); err != nil || !ok {
		t.Errorf("valid token: ok=%v err=%v", ok, err)
	}
	if ok, _ := auth.Authorize("good", other.ID); ok {
		t.Error("token bound to one truck must not authorize another")
	}
	if ok, err := auth.Authorize("bad", truck.ID); err != nil || ok {
		t.Errorf("unknown token: ok=%v err=%v, want deny without error", ok, err)
	}

	if err := db.RevokeDeviceToken(tok.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := auth.Authorize("good", truck.ID); ok {
		t.Error("revoked token must not authorize")
	}
	if ok, _ := auth.Authenticate("good"); ok {
		t.Error("revoked token must not authenticate")
	}
}

func TestIngestUnknownRefNeedsValidIdentity(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, _, _ := newTestIngestor(t, db, NewTokenAuthorizer(db))

	tok := &store.DeviceToken{TruckID: a.TruckID, TokenHash: HashToken("cab-token"), Label: "cab unit"}
	if err := db.CreateDeviceToken(tok); err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Without a valid token, unknown and known refs must be
	// indistinguishable: both fail authentication.
	r := Report{AssignmentRef: "no-such-ref", Lat: 22.5, Lng: 88.3, CapturedAt: testNow, Identity: "bad-token"}
	if _, err := ing.Ingest(r); !errors.Is(err, track.ErrUnauthorized) {
		t.Errorf("unknown ref, bad identity: err = %v, want ErrUnauthorized", err)
	}
	r.AssignmentRef = a.Ref
	if _, err := ing.Ingest(r); !errors.Is(err, track.ErrUnauthorized) {
		t.Errorf("known ref, bad identity: err = %v, want ErrUnauthorized", err)
	}

	// An authenticated device reporting a stale ref gets the silent
	// rejection.
	r = Report{AssignmentRef: "no-such-ref", Lat: 22.5, Lng: 88.3, CapturedAt: testNow, Identity: "cab-token"}
	res, err := ing.Ingest(r)
	if err != nil {
		t.Fatalf("unknown ref, good identity: %v", err)
	}
	if res.Accepted || res.Reason != ReasonStaleOrUnknown {
		t.Errorf("Result = %+v, want rejected stale-or-unknown", res)
	}
}

func TestIngestRejectsForeignTruckToken(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db, track.StatusPickedUp)
	ing, _, _ := newTestIngestor(t, db, NewTokenAuthorizer(db))

	other := &store.Truck{Name: "WB-08", LicensePlate: "WB08YY5678", Active: true}
	if err := db.CreateTruck(other); err != nil {
		t.Fatalf("create truck: %v", err)
	}
	tok := &store.DeviceToken{TruckID: other.ID, TokenHash: HashToken("other-cab"), Label: "other cab"}
	if err := db.CreateDeviceToken(tok); err != nil {
		t.Fatalf("create token: %v", err)
	}

	// Valid token, but bound to a different truck than the assignment's.
	r := report(a, 22.55, 88.34, testNow.Add(-time.Minute))
	r.Identity = "other-cab"
	if _, err := ing.Ingest(r); !errors.Is(err, track.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}

	crumbs, _ := db.ListBreadcrumbs(a.ID, 10)
	if len(crumbs) != 0 {
		t.Error("unauthorized reports must not leave breadcrumbs")
	}
}
