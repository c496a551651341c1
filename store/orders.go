package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Order statuses as reported by the order/approval service. Only approved
// orders may be dispatched.
const (
	OrderPending  = "pending"
	OrderApproved = "approved"
	OrderRejected = "rejected"
)

// Order is the opaque collaborator record this service tracks deliveries
// for. The business workflow around it lives elsewhere; here it supplies
// the fulfillment gate and the destination coordinates.
type Order struct {
	ID         int64     `json:"id"`
	Reference  string    `json:"reference"`
	Status     string    `json:"status"`
	DealerName string    `json:"dealer_name"`
	DestLat    *float64  `json:"dest_lat,omitempty"`
	DestLng    *float64  `json:"dest_lng,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	var lat, lng sql.NullFloat64
	var createdAt any
	if err := row.Scan(&o.ID, &o.Reference, &o.Status, &o.DealerName, &lat, &lng, &createdAt); err != nil {
		return nil, err
	}
	if lat.Valid {
		o.DestLat = &lat.Float64
	}
	if lng.Valid {
		o.DestLng = &lng.Float64
	}
	o.CreatedAt = parseTime(createdAt)
	return &o, nil
}

func (db *DB) CreateOrder(o *Order) error {
	if o.Status == "" {
		o.Status = OrderPending
	}
	id, err := db.insertReturningID(
		`INSERT INTO orders (reference, status, dealer_name, dest_lat, dest_lng) VALUES (?, ?, ?, ?, ?)`,
		o.Reference, o.Status, o.DealerName, nullable(o.DestLat), nullable(o.DestLng))
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	o.ID = id
	return nil
}

func (db *DB) GetOrder(id int64) (*Order, error) {
	row := db.QueryRow(db.Q(`SELECT id, reference, status, dealer_name, dest_lat, dest_lng, created_at FROM orders WHERE id=?`), id)
	return scanOrder(row)
}

func (db *DB) GetOrderByReference(ref string) (*Order, error) {
	row := db.QueryRow(db.Q(`SELECT id, reference, status, dealer_name, dest_lat, dest_lng, created_at FROM orders WHERE reference=?`), ref)
	return scanOrder(row)
}

func (db *DB) UpdateOrderStatus(id int64, status string) error {
	_, err := db.Exec(db.Q(`UPDATE orders SET status=? WHERE id=?`), status, id)
	return err
}

func (db *DB) ListOrders(status string, limit int) ([]*Order, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = db.Query(db.Q(`SELECT id, reference, status, dealer_name, dest_lat, dest_lng, created_at FROM orders WHERE status=? ORDER BY id DESC LIMIT ?`), status, limit)
	} else {
		rows, err = db.Query(db.Q(`SELECT id, reference, status, dealer_name, dest_lat, dest_lng, created_at FROM orders ORDER BY id DESC LIMIT ?`), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
