package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleettrack/track"
)

type Assignment struct {
	ID           int64   `json:"id"`
	Ref          string  `json:"ref"`
	OrderID      int64   `json:"order_id"`
	TruckID      int64   `json:"truck_id"`
	WarehouseID  int64   `json:"warehouse_id"`
	DriverName   string  `json:"driver_name"`
	DriverPhone  string  `json:"driver_phone"`
	Status       string  `json:"status"`
	OriginLat    *float64 `json:"origin_lat,omitempty"`
	OriginLng    *float64 `json:"origin_lng,omitempty"`
	CurrentLat   *float64 `json:"current_lat,omitempty"`
	CurrentLng   *float64 `json:"current_lng,omitempty"`
	CurrentSpeed *float64 `json:"current_speed,omitempty"`
	CurrentHeading *float64 `json:"current_heading,omitempty"`
	CurrentCapturedAt *time.Time `json:"current_captured_at,omitempty"`
	AssignedAt   time.Time  `json:"assigned_at"`
	PickupAt     *time.Time `json:"pickup_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	Version      int64      `json:"version"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CurrentLocation returns the assignment's current-location pointer, or nil
// when no breadcrumb has been accepted yet.
func (a *Assignment) CurrentLocation() *CurrentLocation {
	if a.CurrentLat == nil || a.CurrentLng == nil || a.CurrentCapturedAt == nil {
		return nil
	}
	return &CurrentLocation{
		Lat:        *a.CurrentLat,
		Lng:        *a.CurrentLng,
		Speed:      a.CurrentSpeed,
		Heading:    a.CurrentHeading,
		CapturedAt: *a.CurrentCapturedAt,
	}
}

// CurrentLocation is the derived most-recent-accepted position.
type CurrentLocation struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

type AssignmentHistory struct {
	ID           int64     `json:"id"`
	AssignmentID int64     `json:"assignment_id"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}

const assignmentSelectCols = `id, ref, order_id, truck_id, warehouse_id, driver_name, driver_phone, status, origin_lat, origin_lng, current_lat, current_lng, current_speed, current_heading, current_captured_at, assigned_at, pickup_at, delivered_at, estimated_delivery_at, cancel_reason, notes, version, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*Assignment, error) {
	var a Assignment
	var originLat, originLng, curLat, curLng, curSpeed, curHeading sql.NullFloat64
	var curCapturedAt, assignedAt, pickupAt, deliveredAt, estimatedAt, updatedAt any

	err := row.Scan(&a.ID, &a.Ref, &a.OrderID, &a.TruckID, &a.WarehouseID,
		&a.DriverName, &a.DriverPhone, &a.Status,
		&originLat, &originLng, &curLat, &curLng, &curSpeed, &curHeading,
		&curCapturedAt, &assignedAt, &pickupAt, &deliveredAt, &estimatedAt,
		&a.CancelReason, &a.Notes, &a.Version, &updatedAt)
	if err != nil {
		return nil, err
	}
	if originLat.Valid {
		a.OriginLat = &originLat.Float64
	}
	if originLng.Valid {
		a.OriginLng = &originLng.Float64
	}
	if curLat.Valid {
		a.CurrentLat = &curLat.Float64
	}
	if curLng.Valid {
		a.CurrentLng = &curLng.Float64
	}
	if curSpeed.Valid {
		a.CurrentSpeed = &curSpeed.Float64
	}
	if curHeading.Valid {
		a.CurrentHeading = &curHeading.Float64
	}
	a.CurrentCapturedAt = parseTimePtr(curCapturedAt)
	a.AssignedAt = parseTime(assignedAt)
	a.PickupAt = parseTimePtr(pickupAt)
	a.DeliveredAt = parseTimePtr(deliveredAt)
	a.EstimatedDeliveryAt = parseTimePtr(estimatedAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func scanAssignments(rows *sql.Rows) ([]*Assignment, error) {
	var out []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) CreateAssignment(a *Assignment) error {
	if a.Status == "" {
		a.Status = track.StatusAssigned
	}
	var estimated any
	if a.EstimatedDeliveryAt != nil {
		estimated = db.TimeArg(*a.EstimatedDeliveryAt)
	}
	id, err := db.insertReturningID(
		`INSERT INTO assignments (ref, order_id, truck_id, warehouse_id, driver_name, driver_phone, status, origin_lat, origin_lng, estimated_delivery_at, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Ref, a.OrderID, a.TruckID, a.WarehouseID, a.DriverName, a.DriverPhone,
		a.Status, nullable(a.OriginLat), nullable(a.OriginLng), estimated, a.Notes)
	if err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	a.ID = id
	return db.AppendAssignmentHistory(id, a.Status, "assignment created")
}

func (db *DB) GetAssignment(id int64) (*Assignment, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE id=?`, assignmentSelectCols)), id)
	return scanAssignment(row)
}

func (db *DB) GetAssignmentByRef(ref string) (*Assignment, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE ref=?`, assignmentSelectCols)), ref)
	return scanAssignment(row)
}

// GetActiveAssignmentByOrder returns the order's single non-terminal
// assignment, or sql.ErrNoRows.
func (db *DB) GetActiveAssignmentByOrder(orderID int64) (*Assignment, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE order_id=? AND status NOT IN ('delivered', 'cancelled') ORDER BY id DESC LIMIT 1`, assignmentSelectCols)), orderID)
	return scanAssignment(row)
}

// GetLatestAssignmentByOrder returns the most recent assignment regardless
// of status; delivered orders still have a tracking picture to show.
func (db *DB) GetLatestAssignmentByOrder(orderID int64) (*Assignment, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE order_id=? ORDER BY id DESC LIMIT 1`, assignmentSelectCols)), orderID)
	return scanAssignment(row)
}

// GetActiveAssignmentByTruck resolves which assignment a truck's reports
// belong to when the device identifies only the truck.
func (db *DB) GetActiveAssignmentByTruck(truckID int64) (*Assignment, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE truck_id=? AND status NOT IN ('delivered', 'cancelled') ORDER BY id DESC LIMIT 1`, assignmentSelectCols)), truckID)
	return scanAssignment(row)
}

func (db *DB) ListAssignments(status string, limit int) ([]*Assignment, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE status=? ORDER BY id DESC LIMIT ?`, assignmentSelectCols)), status, limit)
	} else {
		rows, err = db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM assignments ORDER BY id DESC LIMIT ?`, assignmentSelectCols)), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

func (db *DB) ListActiveAssignments() ([]*Assignment, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM assignments WHERE status NOT IN ('delivered', 'cancelled') ORDER BY id DESC`, assignmentSelectCols)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// TransitionAssignment moves an assignment to a new status with a
// compare-and-swap on the current status set. Returns false when no row
// matched, meaning the assignment was not in any of the from statuses;
// the caller re-reads and decides between idempotent no-op and rejection.
func (db *DB) TransitionAssignment(id int64, from []string, to string, detail string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition to %s: empty from set", to)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	set := `status=?, version=version+1, updated_at=datetime('now')`
	switch to {
	case track.StatusPickedUp:
		set += `, pickup_at=datetime('now')`
	case track.StatusDelivered:
		set += `, delivered_at=datetime('now')`
	}
	args := []any{to}
	if to == track.StatusCancelled {
		set += `, cancel_reason=?`
		args = append(args, detail)
	}
	args = append(args, id)
	for _, s := range from {
		args = append(args, s)
	}
	res, err := db.Exec(db.Q(fmt.Sprintf(`UPDATE assignments SET %s WHERE id=? AND status IN (%s)`, set, placeholders)), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	return true, db.AppendAssignmentHistory(id, to, detail)
}

// UpdateAssignmentFields patches mutable dispatch fields while the
// assignment is still non-terminal. Returns false when the assignment was
// terminal and nothing changed.
func (db *DB) UpdateAssignmentFields(id int64, truckID, warehouseID *int64, driverName, driverPhone, notes *string, estimatedDeliveryAt *time.Time) (bool, error) {
	var sets []string
	var args []any
	if truckID != nil {
		sets = append(sets, "truck_id=?")
		args = append(args, *truckID)
	}
	if warehouseID != nil {
		sets = append(sets, "warehouse_id=?")
		args = append(args, *warehouseID)
	}
	if driverName != nil {
		sets = append(sets, "driver_name=?")
		args = append(args, *driverName)
	}
	if driverPhone != nil {
		sets = append(sets, "driver_phone=?")
		args = append(args, *driverPhone)
	}
	if notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, *notes)
	}
	if estimatedDeliveryAt != nil {
		sets = append(sets, "estimated_delivery_at=?")
		args = append(args, db.TimeArg(*estimatedDeliveryAt))
	}
	if len(sets) == 0 {
		return true, nil
	}
	sets = append(sets, "version=version+1", "updated_at=datetime('now')")
	args = append(args, id)
	res, err := db.Exec(db.Q(fmt.Sprintf(`UPDATE assignments SET %s WHERE id=? AND status NOT IN ('delivered', 'cancelled')`, strings.Join(sets, ", "))), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateAssignmentLocation applies the monotonic current-location merge:
// the pointer only moves forward in capture time. Returns false when the
// report was older than (or equal to) the stored position.
func (db *DB) UpdateAssignmentLocation(id int64, lat, lng float64, speed, heading *float64, capturedAt time.Time) (bool, error) {
	arg := db.TimeArg(capturedAt)
	res, err := db.Exec(db.Q(`UPDATE assignments SET current_lat=?, current_lng=?, current_speed=?, current_heading=?, current_captured_at=?, updated_at=datetime('now')
		WHERE id=? AND (current_captured_at IS NULL OR current_captured_at < ?)`),
		lat, lng, nullable(speed), nullable(heading), arg, id, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) AppendAssignmentHistory(assignmentID int64, status, detail string) error {
	_, err := db.Exec(db.Q(`INSERT INTO assignment_history (assignment_id, status, detail) VALUES (?, ?, ?)`),
		assignmentID, status, detail)
	return err
}

func (db *DB) ListAssignmentHistory(assignmentID int64) ([]*AssignmentHistory, error) {
	rows, err := db.Query(db.Q(`SELECT id, assignment_id, status, detail, created_at FROM assignment_history WHERE assignment_id=? ORDER BY id`), assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []*AssignmentHistory
	for rows.Next() {
		var h AssignmentHistory
		var createdAt any
		if err := rows.Scan(&h.ID, &h.AssignmentID, &h.Status, &h.Detail, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		history = append(history, &h)
	}
	return history, rows.Err()
}
