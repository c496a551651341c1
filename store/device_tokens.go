package store

import "time"

// DeviceToken binds a driver device credential to a truck. Tokens are
// stored hashed; lookup is by hash.
type DeviceToken struct {
	ID        int64     `json:"id"`
	TokenHash string    `json:"-"`
	TruckID   int64     `json:"truck_id"`
	Label     string    `json:"label"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateDeviceToken mints a token binding. Tokens start active;
// RevokeDeviceToken is the only way to deactivate one.
func (db *DB) CreateDeviceToken(t *DeviceToken) error {
	t.Active = true
	id, err := db.insertReturningID(
		`INSERT INTO device_tokens (token_hash, truck_id, label, active) VALUES (?, ?, ?, ?)`,
		t.TokenHash, t.TruckID, t.Label, t.Active)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (db *DB) GetDeviceTokenByHash(hash string) (*DeviceToken, error) {
	var t DeviceToken
	var createdAt any
	err := db.QueryRow(db.Q(`SELECT id, token_hash, truck_id, label, active, created_at FROM device_tokens WHERE token_hash=?`), hash).
		Scan(&t.ID, &t.TokenHash, &t.TruckID, &t.Label, &t.Active, &createdAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (db *DB) ListDeviceTokens(truckID int64) ([]*DeviceToken, error) {
	rows, err := db.Query(db.Q(`SELECT id, token_hash, truck_id, label, active, created_at FROM device_tokens WHERE truck_id=? ORDER BY id`), truckID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tokens []*DeviceToken
	for rows.Next() {
		var t DeviceToken
		var createdAt any
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.TruckID, &t.Label, &t.Active, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(createdAt)
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (db *DB) RevokeDeviceToken(id int64) error {
	_, err := db.Exec(db.Q(`UPDATE device_tokens SET active=? WHERE id=?`), false, id)
	return err
}
