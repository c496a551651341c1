package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleettrack/config"
	"fleettrack/track"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: dbPath},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})
	return db
}

func seedAssignment(t *testing.T, db *DB) *Assignment {
	t.Helper()
	truck := &Truck{Name: "KA-01", LicensePlate: "KA01AB1234", CapacityKg: 9000, TruckType: "rigid", Active: true}
	if err := db.CreateTruck(truck); err != nil {
		t.Fatalf("create truck: %v", err)
	}
	wh := &Warehouse{Name: "Dankuni Depot", Lat: 22.68, Lng: 88.29}
	if err := db.CreateWarehouse(wh); err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	lat, lng := 22.51, 88.36
	order := &Order{Reference: "ORD-1001", Status: OrderApproved, DealerName: "Howrah Traders", DestLat: &lat, DestLng: &lng}
	if err := db.CreateOrder(order); err != nil {
		t.Fatalf("create order: %v", err)
	}
	a := &Assignment{
		Ref:         "asg-test-1",
		OrderID:     order.ID,
		TruckID:     truck.ID,
		WarehouseID: wh.ID,
		DriverName:  "R. Das",
		DriverPhone: "+91-90000-00001",
	}
	if err := db.CreateAssignment(a); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	got, err := db.GetAssignment(a.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	return got
}

// --- Truck tests ---

func TestTruckCRUD(t *testing.T) {
	db := testDB(t)

	tr := &Truck{Name: "KA-07", LicensePlate: "KA07XY9999", CapacityKg: 12000, TruckType: "articulated", Active: true}
	if err := db.CreateTruck(tr); err != nil {
		t.Fatalf("create: %v", err)
	}
	if tr.ID == 0 {
		t.Fatal("ID should be assigned")
	}

	got, err := db.GetTruck(tr.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "KA-07" {
		t.Errorf("Name = %q, want %q", got.Name, "KA-07")
	}
	if got.OpStatus != TruckIdle {
		t.Errorf("OpStatus = %q, want %q", got.OpStatus, TruckIdle)
	}
	if got.LastLat != nil {
		t.Error("LastLat should be nil before any report")
	}

	if err := db.UpdateTruckOpStatus(tr.ID, TruckAssigned); err != nil {
		t.Fatalf("op status: %v", err)
	}
	got, _ = db.GetTruck(tr.ID)
	if got.OpStatus != TruckAssigned {
		t.Errorf("OpStatus = %q, want %q", got.OpStatus, TruckAssigned)
	}

	trucks, err := db.ListTrucks(true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(trucks) != 1 {
		t.Errorf("len = %d, want 1", len(trucks))
	}
}

func TestTruckLocationMonotonic(t *testing.T) {
	db := testDB(t)
	tr := &Truck{Name: "KA-02", LicensePlate: "KA02CD5678", Active: true}
	if err := db.CreateTruck(tr); err != nil {
		t.Fatalf("create: %v", err)
	}

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	if ok, err := db.UpdateTruckLocation(tr.ID, 22.50, 88.30, nil, nil, base.Add(time.Minute)); err != nil || !ok {
		t.Fatalf("first update: ok=%v err=%v", ok, err)
	}
	// Older capture must not win.
	if ok, _ := db.UpdateTruckLocation(tr.ID, 22.99, 88.99, nil, nil, base); ok {
		t.Error("older capture should not update")
	}
	got, _ := db.GetTruck(tr.ID)
	if *got.LastLat != 22.50 {
		t.Errorf("LastLat = %v, want 22.50", *got.LastLat)
	}
}

// --- Order tests ---

func TestOrderLookup(t *testing.T) {
	db := testDB(t)
	o := &Order{Reference: "ORD-7", DealerName: "Dealer 7"}
	if err := db.CreateOrder(o); err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != OrderPending {
		t.Errorf("Status = %q, want pending default", o.Status)
	}

	got, err := db.GetOrderByReference("ORD-7")
	if err != nil {
		t.Fatalf("by reference: %v", err)
	}
	if got.ID != o.ID {
		t.Errorf("ID = %d, want %d", got.ID, o.ID)
	}

	if _, err := db.GetOrderByReference("ORD-missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing order err = %v, want sql.ErrNoRows", err)
	}

	if err := db.UpdateOrderStatus(o.ID, OrderApproved); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ = db.GetOrder(o.ID)
	if got.Status != OrderApproved {
		t.Errorf("Status = %q, want approved", got.Status)
	}
}

// --- Assignment tests ---

func TestAssignmentTransitionCAS(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	if a.Status != track.StatusAssigned {
		t.Fatalf("Status = %q, want assigned", a.Status)
	}

	ok, err := db.TransitionAssignment(a.ID, []string{track.StatusAssigned}, track.StatusPickedUp, "pickup recorded")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !ok {
		t.Fatal("transition should apply")
	}

	got, _ := db.GetAssignment(a.ID)
	if got.Status != track.StatusPickedUp {
		t.Errorf("Status = %q, want picked_up", got.Status)
	}
	if got.PickupAt == nil {
		t.Error("PickupAt should be set")
	}
	if got.Version != a.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, a.Version+1)
	}

	// Replaying the same transition finds no matching row.
	ok, err = db.TransitionAssignment(a.ID, []string{track.StatusAssigned}, track.StatusPickedUp, "pickup recorded")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if ok {
		t.Error("replay should not apply")
	}

	history, err := db.ListAssignmentHistory(a.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history len = %d, want 2 (created + pickup)", len(history))
	}
}

func TestActiveAssignmentLookups(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	byOrder, err := db.GetActiveAssignmentByOrder(a.OrderID)
	if err != nil {
		t.Fatalf("by order: %v", err)
	}
	if byOrder.ID != a.ID {
		t.Errorf("ID = %d, want %d", byOrder.ID, a.ID)
	}

	byTruck, err := db.GetActiveAssignmentByTruck(a.TruckID)
	if err != nil {
		t.Fatalf("by truck: %v", err)
	}
	if byTruck.ID != a.ID {
		t.Errorf("ID = %d, want %d", byTruck.ID, a.ID)
	}

	db.TransitionAssignment(a.ID, []string{track.StatusAssigned}, track.StatusCancelled, "dealer refused")
	if _, err := db.GetActiveAssignmentByOrder(a.OrderID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("cancelled order active lookup err = %v, want sql.ErrNoRows", err)
	}

	// The latest lookup still returns the terminal assignment.
	latest, err := db.GetLatestAssignmentByOrder(a.OrderID)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Status != track.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", latest.Status)
	}
	if latest.CancelReason != "dealer refused" {
		t.Errorf("CancelReason = %q", latest.CancelReason)
	}
}

func TestUpdateAssignmentFieldsTerminalGuard(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	name := "S. Bose"
	ok, err := db.UpdateAssignmentFields(a.ID, nil, nil, &name, nil, nil, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !ok {
		t.Fatal("update should apply on active assignment")
	}
	got, _ := db.GetAssignment(a.ID)
	if got.DriverName != "S. Bose" {
		t.Errorf("DriverName = %q", got.DriverName)
	}

	db.TransitionAssignment(a.ID, []string{track.StatusAssigned}, track.StatusCancelled, "test")
	ok, err = db.UpdateAssignmentFields(a.ID, nil, nil, &name, nil, nil, nil)
	if err != nil {
		t.Fatalf("terminal update: %v", err)
	}
	if ok {
		t.Error("terminal assignment should be immutable")
	}
}

// The current-location pointer resolves to the newest capture time no
// matter what order reports arrive in.
func TestAssignmentLocationMonotonicMerge(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	t1 := base.Add(1 * time.Minute)
	t2 := base.Add(2 * time.Minute)
	t3 := base.Add(3 * time.Minute)

	// Arrival order T2, T1, T3.
	if ok, err := db.UpdateAssignmentLocation(a.ID, 22.52, 88.32, nil, nil, t2); err != nil || !ok {
		t.Fatalf("t2: ok=%v err=%v", ok, err)
	}
	if ok, err := db.UpdateAssignmentLocation(a.ID, 22.51, 88.31, nil, nil, t1); err != nil {
		t.Fatalf("t1: %v", err)
	} else if ok {
		t.Error("t1 is older than t2, should not apply")
	}
	if ok, err := db.UpdateAssignmentLocation(a.ID, 22.53, 88.33, nil, nil, t3); err != nil || !ok {
		t.Fatalf("t3: ok=%v err=%v", ok, err)
	}

	got, _ := db.GetAssignment(a.ID)
	loc := got.CurrentLocation()
	if loc == nil {
		t.Fatal("current location should be set")
	}
	if loc.Lat != 22.53 || loc.Lng != 88.33 {
		t.Errorf("location = %v,%v, want t3's 22.53,88.33", loc.Lat, loc.Lng)
	}
	if !loc.CapturedAt.Equal(t3) {
		t.Errorf("CapturedAt = %v, want %v", loc.CapturedAt, t3)
	}

	// Equal capture time is not newer.
	if ok, _ := db.UpdateAssignmentLocation(a.ID, 22.99, 88.99, nil, nil, t3); ok {
		t.Error("equal capture time should not apply")
	}
}

// --- Breadcrumb tests ---

func TestBreadcrumbDedupAndOrder(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	samples := []time.Time{base.Add(2 * time.Minute), base.Add(1 * time.Minute), base.Add(3 * time.Minute)}
	for i, at := range samples {
		ok, err := db.InsertBreadcrumb(&Breadcrumb{
			AssignmentID: a.ID, TruckID: a.TruckID,
			Lat: 22.50 + float64(i)/100, Lng: 88.30,
			CapturedAt: at,
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("insert %d should write", i)
		}
	}

	// Retransmission of an existing capture time is ignored.
	ok, err := db.InsertBreadcrumb(&Breadcrumb{
		AssignmentID: a.ID, TruckID: a.TruckID,
		Lat: 99, Lng: 99, CapturedAt: samples[0],
	})
	if err != nil {
		t.Fatalf("dup insert: %v", err)
	}
	if ok {
		t.Error("duplicate capture time should be ignored")
	}

	crumbs, err := db.ListBreadcrumbs(a.ID, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(crumbs) != 3 {
		t.Fatalf("len = %d, want 3", len(crumbs))
	}
	for i := 1; i < len(crumbs); i++ {
		if !crumbs[i-1].CapturedAt.Before(crumbs[i].CapturedAt) {
			t.Errorf("crumbs not in capture order at %d", i)
		}
	}

	n, err := db.CountBreadcrumbsAfter(a.ID, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("count after: %v", err)
	}
	if n != 2 {
		t.Errorf("count after t2 = %d, want 2", n)
	}
}

func TestListBreadcrumbsLimitKeepsNewest(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		db.InsertBreadcrumb(&Breadcrumb{
			AssignmentID: a.ID, TruckID: a.TruckID,
			Lat: 22.5, Lng: 88.3,
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	crumbs, err := db.ListBreadcrumbs(a.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(crumbs) != 2 {
		t.Fatalf("len = %d, want 2", len(crumbs))
	}
	if !crumbs[1].CapturedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("limit should keep the newest samples, got last = %v", crumbs[1].CapturedAt)
	}
}

// --- Outbox tests ---

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.EnqueueOutbox("fleettrack.events", []byte(`{"a":1}`), "assignment.status_changed"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.EnqueueOutbox("fleettrack.events", []byte(`{"a":2}`), "assignment.status_changed"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	msgs, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}

	if err := db.IncrementOutboxRetries(msgs[0].ID); err != nil {
		t.Fatalf("retries: %v", err)
	}
	if err := db.AckOutbox(msgs[1].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	msgs, _ = db.ListPendingOutbox(10)
	if len(msgs) != 1 {
		t.Fatalf("pending after ack = %d, want 1", len(msgs))
	}
	if msgs[0].Retries != 1 {
		t.Errorf("Retries = %d, want 1", msgs[0].Retries)
	}
}

// --- Device token tests ---

func TestDeviceTokens(t *testing.T) {
	db := testDB(t)
	tr := &Truck{Name: "KA-03", LicensePlate: "KA03EF1111", Active: true}
	db.CreateTruck(tr)

	// Active is not set by the caller; minting must activate the token.
	tok := &DeviceToken{TokenHash: "abcd1234", TruckID: tr.ID, Label: "driver phone"}
	if err := db.CreateDeviceToken(tok); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !tok.Active {
		t.Error("minted token should be active")
	}

	got, err := db.GetDeviceTokenByHash("abcd1234")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TruckID != tr.ID || !got.Active {
		t.Errorf("token = %+v", got)
	}

	if err := db.RevokeDeviceToken(tok.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ = db.GetDeviceTokenByHash("abcd1234")
	if got.Active {
		t.Error("token should be revoked")
	}
}

// --- Dialect tests ---

func TestRebind(t *testing.T) {
	got := Rebind("SELECT * FROM t WHERE a=? AND b=?")
	want := "SELECT * FROM t WHERE a=$1 AND b=$2"
	if got != want {
		t.Errorf("Rebind = %q, want %q", got, want)
	}
}

func TestTimeArgFixedWidth(t *testing.T) {
	db := testDB(t)
	at := time.Date(2026, 3, 10, 5, 4, 3, 0, time.FixedZone("IST", 5*3600+1800))
	arg, ok := db.TimeArg(at).(string)
	if !ok {
		t.Fatalf("sqlite TimeArg should be a string, got %T", db.TimeArg(at))
	}
	if arg != "2026-03-09 23:34:03" {
		t.Errorf("TimeArg = %q", arg)
	}
}

func TestOneActiveAssignmentPerOrder(t *testing.T) {
	db := testDB(t)
	a := seedAssignment(t, db)

	dup := &Assignment{
		Ref:         "asg-test-dup",
		OrderID:     a.OrderID,
		TruckID:     a.TruckID,
		WarehouseID: a.WarehouseID,
	}
	err := db.CreateAssignment(dup)
	if err == nil {
		t.Fatal("second active assignment for the order should be rejected")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("err = %v, want unique violation", err)
	}

	// Once the first run is terminal the order can be assigned again.
	if _, err := db.TransitionAssignment(a.ID, []string{"assigned", "picked_up"}, "cancelled", "test"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := db.CreateAssignment(dup); err != nil {
		t.Fatalf("assignment after terminal: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if IsUniqueViolation(nil) {
		t.Error("nil is not a violation")
	}
	if IsUniqueViolation(sql.ErrNoRows) {
		t.Error("ErrNoRows is not a violation")
	}
}
