package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Breadcrumb is one immutable GPS sample. Append-only: display order is
// captured_at, ingestion sequencing is received_at.
type Breadcrumb struct {
	ID           int64     `json:"id"`
	AssignmentID int64     `json:"assignment_id"`
	TruckID      int64     `json:"truck_id"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Speed        *float64  `json:"speed,omitempty"`
	Heading      *float64  `json:"heading,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
	ReceivedAt   time.Time `json:"received_at"`
}

const breadcrumbSelectCols = `id, assignment_id, truck_id, lat, lng, speed, heading, captured_at, received_at`

func scanBreadcrumb(row interface{ Scan(...any) error }) (*Breadcrumb, error) {
	var b Breadcrumb
	var speed, heading sql.NullFloat64
	var capturedAt, receivedAt any
	err := row.Scan(&b.ID, &b.AssignmentID, &b.TruckID, &b.Lat, &b.Lng,
		&speed, &heading, &capturedAt, &receivedAt)
	if err != nil {
		return nil, err
	}
	if speed.Valid {
		b.Speed = &speed.Float64
	}
	if heading.Valid {
		b.Heading = &heading.Float64
	}
	b.CapturedAt = parseTime(capturedAt)
	b.ReceivedAt = parseTime(receivedAt)
	return &b, nil
}

// InsertBreadcrumb appends a sample. A duplicate (assignment, captured_at)
// pair is silently ignored so driver-client retransmissions stay
// idempotent. Returns whether a new row was written.
func (db *DB) InsertBreadcrumb(b *Breadcrumb) (bool, error) {
	var q string
	if db.driver == "postgres" {
		q = `INSERT INTO breadcrumbs (assignment_id, truck_id, lat, lng, speed, heading, captured_at) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (assignment_id, captured_at) DO NOTHING`
	} else {
		q = `INSERT OR IGNORE INTO breadcrumbs (assignment_id, truck_id, lat, lng, speed, heading, captured_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	}
	res, err := db.Exec(db.Q(q),
		b.AssignmentID, b.TruckID, b.Lat, b.Lng,
		nullable(b.Speed), nullable(b.Heading), db.TimeArg(b.CapturedAt))
	if err != nil {
		return false, fmt.Errorf("insert breadcrumb: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListBreadcrumbs returns up to limit of the newest samples for an
// assignment, ordered oldest to newest for display.
func (db *DB) ListBreadcrumbs(assignmentID int64, limit int) ([]*Breadcrumb, error) {
	rows, err := db.Query(db.Q(fmt.Sprintf(`SELECT %s FROM breadcrumbs WHERE assignment_id=? ORDER BY captured_at DESC LIMIT ?`, breadcrumbSelectCols)),
		assignmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var crumbs []*Breadcrumb
	for rows.Next() {
		b, err := scanBreadcrumb(rows)
		if err != nil {
			return nil, err
		}
		crumbs = append(crumbs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into capture order.
	for i, j := 0, len(crumbs)-1; i < j; i, j = i+1, j-1 {
		crumbs[i], crumbs[j] = crumbs[j], crumbs[i]
	}
	return crumbs, nil
}

// CountBreadcrumbsAfter counts samples captured at or after t, used to
// derive in_transit from picked_up.
func (db *DB) CountBreadcrumbsAfter(assignmentID int64, t time.Time) (int, error) {
	var count int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM breadcrumbs WHERE assignment_id=? AND captured_at >= ?`),
		assignmentID, db.TimeArg(t)).Scan(&count)
	return count, err
}

func (db *DB) CountBreadcrumbs(assignmentID int64) (int, error) {
	var count int
	err := db.QueryRow(db.Q(`SELECT COUNT(*) FROM breadcrumbs WHERE assignment_id=?`), assignmentID).Scan(&count)
	return count, err
}
