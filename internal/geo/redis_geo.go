package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-hail/internal/models"
)

// RedisLocations implements LocationCache on Redis GEO commands plus a
// metadata hash per driver, so several server instances share one view.
type RedisLocations struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisLocations(addr, password, key string) *RedisLocations {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisLocations{client: c, key: key, ctx: context.Background()}
}

func (r *RedisLocations) Upsert(loc models.DriverLocation) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: loc.Lng, Latitude: loc.Lat, Name: loc.DriverID}).Result()
	_ = r.client.HSet(r.ctx, metaKey(loc.DriverID), map[string]interface{}{
		"rider_id": loc.RiderID,
		"heading":  strconv.FormatFloat(loc.Heading, 'f', -1, 64),
		"updated":  time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisLocations) Last(driverID string) (models.DriverLocation, bool) {
	pos, err := r.client.GeoPos(r.ctx, r.key, driverID).Result()
	if err != nil || len(pos) == 0 || pos[0] == nil {
		return models.DriverLocation{}, false
	}
	loc := models.DriverLocation{DriverID: driverID, Lat: pos[0].Latitude, Lng: pos[0].Longitude}
	if m, err := r.client.HGetAll(r.ctx, metaKey(driverID)).Result(); err == nil {
		loc.RiderID = m["rider_id"]
		if v, ok := m["heading"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				loc.Heading = f
			}
		}
		if v, ok := m["updated"]; ok {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				loc.Updated = t
			}
		}
	}
	return loc, true
}

func metaKey(id string) string { return "driver:loc:" + id }
