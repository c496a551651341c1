package dispatch

import (
	"fleettrack/store"
)

// StoreApproval answers fulfillment checks from the locally synced order
// records. Deployments with a remote order service swap in an adapter
// satisfying OrderApproval instead.
type StoreApproval struct {
	db *store.DB
}

func NewStoreApproval(db *store.DB) *StoreApproval {
	return &StoreApproval{db: db}
}

func (s *StoreApproval) IsFulfillable(orderID int64) (bool, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return false, err
	}
	return order.Status == store.OrderApproved, nil
}
