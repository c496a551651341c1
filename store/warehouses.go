package store

import (
	"fmt"
	"time"
)

type Warehouse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`
}

func scanWarehouse(row interface{ Scan(...any) error }) (*Warehouse, error) {
	var w Warehouse
	var createdAt any
	if err := row.Scan(&w.ID, &w.Name, &w.Lat, &w.Lng, &createdAt); err != nil {
		return nil, err
	}
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}

func (db *DB) CreateWarehouse(w *Warehouse) error {
	id, err := db.insertReturningID(
		`INSERT INTO warehouses (name, lat, lng) VALUES (?, ?, ?)`,
		w.Name, w.Lat, w.Lng)
	if err != nil {
		return fmt.Errorf("create warehouse: %w", err)
	}
	w.ID = id
	return nil
}

func (db *DB) GetWarehouse(id int64) (*Warehouse, error) {
	row := db.QueryRow(db.Q(`SELECT id, name, lat, lng, created_at FROM warehouses WHERE id=?`), id)
	return scanWarehouse(row)
}

func (db *DB) ListWarehouses() ([]*Warehouse, error) {
	rows, err := db.Query(db.Q(`SELECT id, name, lat, lng, created_at FROM warehouses ORDER BY name`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (db *DB) UpdateWarehouse(w *Warehouse) error {
	_, err := db.Exec(db.Q(`UPDATE warehouses SET name=?, lat=?, lng=? WHERE id=?`),
		w.Name, w.Lat, w.Lng, w.ID)
	return err
}

func (db *DB) DeleteWarehouse(id int64) error {
	_, err := db.Exec(db.Q(`DELETE FROM warehouses WHERE id=?`), id)
	return err
}
