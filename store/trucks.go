package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Truck op statuses, informational for dispatch staff.
const (
	TruckIdle     = "idle"
	TruckAssigned = "assigned"
)

type Truck struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	LicensePlate string     `json:"license_plate"`
	CapacityKg   float64    `json:"capacity_kg"`
	TruckType    string     `json:"truck_type"`
	Active       bool       `json:"active"`
	OpStatus     string     `json:"op_status"`
	LastLat      *float64   `json:"last_lat,omitempty"`
	LastLng      *float64   `json:"last_lng,omitempty"`
	LastSpeed    *float64   `json:"last_speed,omitempty"`
	LastHeading  *float64   `json:"last_heading,omitempty"`
	LastCapturedAt *time.Time `json:"last_captured_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

const truckSelectCols = `id, name, license_plate, capacity_kg, truck_type, active, op_status, last_lat, last_lng, last_speed, last_heading, last_captured_at, created_at, updated_at`

func scanTruck(row interface{ Scan(...any) error }) (*Truck, error) {
	var t Truck
	var lat, lng, speed, heading sql.NullFloat64
	var capturedAt, createdAt, updatedAt any

	err := row.Scan(&t.ID, &t.Name, &t.LicensePlate, &t.CapacityKg, &t.TruckType,
		&t.Active, &t.OpStatus, &lat, &lng, &speed, &heading,
		&capturedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		t.LastLat = &lat.Float64
	}
	if lng.Valid {
		t.LastLng = &lng.Float64
	}
	if speed.Valid {
		t.LastSpeed = &speed.Float64
	}
	if heading.Valid {
		t.LastHeading = &heading.Float64
	}
	t.LastCapturedAt = parseTimePtr(capturedAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func scanTrucks(rows *sql.Rows) ([]*Truck, error) {
	var trucks []*Truck
	for rows.Next() {
		t, err := scanTruck(rows)
		if err != nil {
			return nil, err
		}
		trucks = append(trucks, t)
	}
	return trucks, rows.Err()
}

func (db *DB) CreateTruck(t *Truck) error {
	if t.OpStatus == "" {
		t.OpStatus = TruckIdle
	}
	id, err := db.insertReturningID(
		`INSERT INTO trucks (name, license_plate, capacity_kg, truck_type, active, op_status) VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, t.LicensePlate, t.CapacityKg, t.TruckType, t.Active, t.OpStatus)
	if err != nil {
		return fmt.Errorf("create truck: %w", err)
	}
	t.ID = id
	return nil
}

func (db *DB) GetTruck(id int64) (*Truck, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM trucks WHERE id=?`, truckSelectCols)), id)
	return scanTruck(row)
}

func (db *DB) GetTruckByName(name string) (*Truck, error) {
	row := db.QueryRow(db.Q(fmt.Sprintf(`SELECT %s FROM trucks WHERE name=?`, truckSelectCols)), name)
	return scanTruck(row)
}

func (db *DB) ListTrucks(activeOnly bool) ([]*Truck, error) {
	q := fmt.Sprintf(`SELECT %s FROM trucks ORDER BY name`, truckSelectCols)
	if activeOnly {
		q = fmt.Sprintf(`SELECT %s FROM trucks WHERE active=%s ORDER BY name`, truckSelectCols, db.boolLit(true))
	}
	rows, err := db.Query(db.Q(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrucks(rows)
}

func (db *DB) UpdateTruck(t *Truck) error {
	_, err := db.Exec(db.Q(`UPDATE trucks SET name=?, license_plate=?, capacity_kg=?, truck_type=?, active=?, updated_at=datetime('now') WHERE id=?`),
		t.Name, t.LicensePlate, t.CapacityKg, t.TruckType, t.Active, t.ID)
	return err
}

func (db *DB) UpdateTruckOpStatus(id int64, opStatus string) error {
	_, err := db.Exec(db.Q(`UPDATE trucks SET op_status=?, updated_at=datetime('now') WHERE id=?`),
		opStatus, id)
	return err
}

// UpdateTruckLocation mirrors an accepted breadcrumb onto the truck row,
// monotonically: older capture times never overwrite a newer position.
func (db *DB) UpdateTruckLocation(id int64, lat, lng float64, speed, heading *float64, capturedAt time.Time) (bool, error) {
	arg := db.TimeArg(capturedAt)
	res, err := db.Exec(db.Q(`UPDATE trucks SET last_lat=?, last_lng=?, last_speed=?, last_heading=?, last_captured_at=?, updated_at=datetime('now')
		WHERE id=? AND (last_captured_at IS NULL OR last_captured_at < ?)`),
		lat, lng, nullable(speed), nullable(heading), arg, id, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) DeleteTruck(id int64) error {
	_, err := db.Exec(db.Q(`DELETE FROM trucks WHERE id=?`), id)
	return err
}

// insertReturningID inserts a row and returns its generated id.
// SQLite uses LastInsertId; Postgres needs RETURNING.
func (db *DB) insertReturningID(query string, args ...any) (int64, error) {
	if db.driver == "postgres" {
		var id int64
		err := db.QueryRow(db.Q(query+` RETURNING id`), args...).Scan(&id)
		return id, err
	}
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (db *DB) boolLit(v bool) string {
	if db.driver == "postgres" {
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	if v {
		return "1"
	}
	return "0"
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
