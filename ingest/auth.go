package ingest

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"

	"fleettrack/store"
)

// TokenAuthorizer authorizes reports against registered device tokens.
// Identity is the raw bearer token; only its SHA-256 hex ever touches the
// database.
type TokenAuthorizer struct {
	db *store.DB
}

func NewTokenAuthorizer(db *store.DB) *TokenAuthorizer {
	return &TokenAuthorizer{db: db}
}

// HashToken returns the stored form of a device token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Authenticate reports whether the identity is a known active token,
// regardless of which truck it is bound to.
func (a *TokenAuthorizer) Authenticate(identity string) (bool, error) {
	tok, err := a.lookup(identity)
	if err != nil || tok == nil {
		return false, err
	}
	return tok.Active, nil
}

func (a *TokenAuthorizer) Authorize(identity string, truckID int64) (bool, error) {
	tok, err := a.lookup(identity)
	if err != nil || tok == nil {
		return false, err
	}
	return tok.Active && tok.TruckID == truckID, nil
}

func (a *TokenAuthorizer) lookup(identity string) (*store.DeviceToken, error) {
	if identity == "" {
		return nil, nil
	}
	tok, err := a.db.GetDeviceTokenByHash(HashToken(identity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return tok, nil
}
