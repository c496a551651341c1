package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"fleettrack/store"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func locationKey(truckID int64) string {
	return fmt.Sprintf("fleettrack:truck:%d:loc", truckID)
}

const allTrucksKey = "fleettrack:trucks"

func (r *RedisStore) SetLocation(ctx context.Context, truckID int64, loc *store.CurrentLocation) error {
	data, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Set(ctx, locationKey(truckID), data, 0)
	pipe.SAdd(ctx, allTrucksKey, truckID)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisStore) GetLocation(ctx context.Context, truckID int64) (*store.CurrentLocation, error) {
	data, err := r.client.Get(ctx, locationKey(truckID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var loc store.CurrentLocation
	return &loc, json.Unmarshal(data, &loc)
}

func (r *RedisStore) GetAllTruckIDs(ctx context.Context) ([]int64, error) {
	members, err := r.client.SMembers(ctx, allTrucksKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *RedisStore) RemoveTruck(ctx context.Context, truckID int64) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, locationKey(truckID))
	pipe.SRem(ctx, allTrucksKey, truckID)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	ids, err := r.GetAllTruckIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.RemoveTruck(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
