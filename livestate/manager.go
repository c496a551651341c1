package livestate

import (
	"context"
	"log"

	"fleettrack/store"
)

// Manager keeps the latest known truck positions in Redis for cheap
// fleet-wide reads. SQL stays authoritative; the cache is rebuilt from it
// on startup and degrades to SQL reads when Redis is unreachable.
type Manager struct {
	db    *store.DB
	redis *RedisStore
}

func NewManager(db *store.DB, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis}
}

// SetLatest mirrors an accepted position into the cache. Failures are
// logged and swallowed: the SQL write already happened.
func (m *Manager) SetLatest(truckID int64, loc store.CurrentLocation) error {
	if err := m.redis.SetLocation(context.Background(), truckID, &loc); err != nil {
		log.Printf("livestate: set truck %d: %v", truckID, err)
		return err
	}
	return nil
}

// GetLatest reads a truck's latest position from Redis, falling back to
// the truck row in SQL.
func (m *Manager) GetLatest(truckID int64) (*store.CurrentLocation, error) {
	loc, err := m.redis.GetLocation(context.Background(), truckID)
	if err == nil && loc != nil {
		return loc, nil
	}
	return m.latestFromSQL(truckID)
}

// GetAllLatest returns the latest position of every truck that has one,
// preferring Redis and falling back to a SQL scan.
func (m *Manager) GetAllLatest() (map[int64]*store.CurrentLocation, error) {
	ctx := context.Background()
	out := make(map[int64]*store.CurrentLocation)

	ids, err := m.redis.GetAllTruckIDs(ctx)
	if err == nil && len(ids) > 0 {
		for _, id := range ids {
			loc, err := m.redis.GetLocation(ctx, id)
			if err != nil || loc == nil {
				continue
			}
			out[id] = loc
		}
		return out, nil
	}

	trucks, err := m.db.ListTrucks(false)
	if err != nil {
		return nil, err
	}
	for _, t := range trucks {
		if loc := truckLocation(t); loc != nil {
			out[t.ID] = loc
		}
	}
	return out, nil
}

// SyncFromSQL rebuilds the cache from truck rows. Called on startup.
func (m *Manager) SyncFromSQL() error {
	ctx := context.Background()
	if err := m.redis.FlushAll(ctx); err != nil {
		return err
	}

	trucks, err := m.db.ListTrucks(false)
	if err != nil {
		return err
	}
	synced := 0
	for _, t := range trucks {
		loc := truckLocation(t)
		if loc == nil {
			continue
		}
		if err := m.redis.SetLocation(ctx, t.ID, loc); err != nil {
			log.Printf("livestate: sync truck %d: %v", t.ID, err)
			continue
		}
		synced++
	}
	log.Printf("livestate: synced %d truck positions to redis", synced)
	return nil
}

func (m *Manager) RemoveTruck(truckID int64) {
	if err := m.redis.RemoveTruck(context.Background(), truckID); err != nil {
		log.Printf("livestate: remove truck %d: %v", truckID, err)
	}
}

func (m *Manager) latestFromSQL(truckID int64) (*store.CurrentLocation, error) {
	t, err := m.db.GetTruck(truckID)
	if err != nil {
		return nil, err
	}
	return truckLocation(t), nil
}

func truckLocation(t *store.Truck) *store.CurrentLocation {
	if t.LastLat == nil || t.LastLng == nil || t.LastCapturedAt == nil {
		return nil
	}
	return &store.CurrentLocation{
		Lat:        *t.LastLat,
		Lng:        *t.LastLng,
		Speed:      t.LastSpeed,
		Heading:    t.LastHeading,
		CapturedAt: *t.LastCapturedAt,
	}
}
