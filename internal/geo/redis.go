package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rufatasadov/sober-driver-backend/internal/apperr"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
)

const (
	fieldAccount    = "account_id"
	fieldName       = "name"
	fieldPhone      = "phone"
	fieldCommission = "commission"
	fieldVehicle    = "vehicle"
	fieldOnline     = "online"
	fieldAvailable  = "available"
	fieldLat        = "lat"
	fieldLon        = "lon"
	fieldPosAt      = "pos_at"
	fieldActive     = "active_order"
)

// GEOSEARCH uses a slightly different Earth radius; widen the candidate
// circle and filter with Haversine afterwards.
const searchSlack = 1.01

var reserveScript = redis.NewScript(`
local h = KEYS[1]
if redis.call('HGET', h, 'online') == '1' and redis.call('HGET', h, 'available') == '1' then
  redis.call('HSET', h, 'available', '0', 'active_order', ARGV[1])
  return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
local h = KEYS[1]
if redis.call('EXISTS', h) == 0 then return 0 end
local active = redis.call('HGET', h, 'active_order')
if ARGV[1] ~= '' and active ~= ARGV[1] then return 0 end
local avail = '0'
if redis.call('HGET', h, 'online') == '1' then avail = '1' end
redis.call('HSET', h, 'available', avail, 'active_order', '')
return 1
`)

var presenceScript = redis.NewScript(`
local h = KEYS[1]
local online = ARGV[2]
local avail = ARGV[3]
if online ~= '1' then avail = '0' end
local active = redis.call('HGET', h, 'active_order')
if avail == '1' and active and active ~= '' then return -1 end
if ARGV[1] ~= '' then redis.call('HSET', h, 'account_id', ARGV[1]) end
redis.call('HSET', h, 'online', online, 'available', avail)
if online == '1' then
  redis.call('SADD', KEYS[2], ARGV[4])
else
  redis.call('SREM', KEYS[2], ARGV[4])
end
return 1
`)

var positionScript = redis.NewScript(`
local h = KEYS[1]
local cur = tonumber(redis.call('HGET', h, 'pos_at') or '0')
if tonumber(ARGV[5]) >= cur then
  redis.call('HSET', h, 'lat', ARGV[4], 'lon', ARGV[3], 'pos_at', ARGV[5])
  redis.call('GEOADD', KEYS[2], ARGV[3], ARGV[4], ARGV[1])
end
if ARGV[2] ~= '' then redis.call('HSET', h, 'account_id', ARGV[2]) end
return 1
`)

// RedisIndex keeps driver liveness in Redis so several API instances and the
// location worker share one pool.
type RedisIndex struct {
	rdb    redis.UniversalClient
	prefix string
	maxAge time.Duration
}

// NewRedisIndex creates a RedisIndex using keys under prefix.
func NewRedisIndex(rdb redis.UniversalClient, prefix string, maxAge time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = "dispatch"
	}
	return &RedisIndex{rdb: rdb, prefix: prefix, maxAge: maxAge}
}

func (r *RedisIndex) driverKey(id string) string { return r.prefix + ":driver:" + id }
func (r *RedisIndex) geoKey() string             { return r.prefix + ":drivers:geo" }
func (r *RedisIndex) onlineKey() string          { return r.prefix + ":drivers:online" }

// Register upserts the driver profile keeping current liveness state.
func (r *RedisIndex) Register(ctx context.Context, d domain.Driver) error {
	if d.ID == "" {
		return fmt.Errorf("%w: driver id is required", apperr.ErrInvalid)
	}
	values := map[string]any{}
	if d.AccountID != "" {
		values[fieldAccount] = d.AccountID
	}
	if d.Name != "" {
		values[fieldName] = d.Name
	}
	if d.Phone != "" {
		values[fieldPhone] = d.Phone
	}
	if d.CommissionRate > 0 {
		values[fieldCommission] = strconv.FormatFloat(d.CommissionRate, 'f', -1, 64)
	}
	if d.Vehicle != nil {
		b, err := json.Marshal(d.Vehicle)
		if err != nil {
			return fmt.Errorf("encode vehicle of %s: %w", d.ID, err)
		}
		values[fieldVehicle] = string(b)
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.rdb.HSet(ctx, r.driverKey(d.ID), values).Err(); err != nil {
		return fmt.Errorf("register driver %s: %w", d.ID, err)
	}
	return nil
}

// Get returns a snapshot of the driver.
func (r *RedisIndex) Get(ctx context.Context, id string) (*domain.Driver, error) {
	m, err := r.rdb.HGetAll(ctx, r.driverKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get driver %s: %w", id, err)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: driver %s", apperr.ErrNotFound, id)
	}
	return driverFromHash(id, m), nil
}

// SetPresence sets online/available flags atomically.
func (r *RedisIndex) SetPresence(ctx context.Context, p Presence) (*domain.Driver, error) {
	res, err := presenceScript.Run(ctx, r.rdb,
		[]string{r.driverKey(p.DriverID), r.onlineKey()},
		p.AccountID, flag(p.Online), flag(p.Available), p.DriverID,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("set presence %s: %w", p.DriverID, err)
	}
	if res < 0 {
		return nil, fmt.Errorf("%w: driver is bound to an active order", apperr.ErrConflict)
	}
	return r.Get(ctx, p.DriverID)
}

// UpdatePosition records the latest reported point; older reports are ignored.
func (r *RedisIndex) UpdatePosition(ctx context.Context, driverID, accountID string, p domain.Point, at time.Time) (*domain.Driver, error) {
	err := positionScript.Run(ctx, r.rdb,
		[]string{r.driverKey(driverID), r.geoKey()},
		driverID, accountID,
		strconv.FormatFloat(p.Lon, 'f', -1, 64),
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		at.UnixMilli(),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("update position %s: %w", driverID, err)
	}
	return r.Get(ctx, driverID)
}

// Disconnect marks the driver offline and unavailable.
func (r *RedisIndex) Disconnect(ctx context.Context, driverID string) (*domain.Driver, error) {
	return r.SetPresence(ctx, Presence{DriverID: driverID, Online: false})
}

// Reserve flips isAvailable from true to false for orderID.
func (r *RedisIndex) Reserve(ctx context.Context, driverID, orderID string) (bool, error) {
	n, err := reserveScript.Run(ctx, r.rdb, []string{r.driverKey(driverID)}, orderID).Int()
	if err != nil {
		return false, fmt.Errorf("reserve driver %s: %w", driverID, err)
	}
	return n == 1, nil
}

// Release returns the driver to the pool if it is held for orderID.
func (r *RedisIndex) Release(ctx context.Context, driverID, orderID string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{r.driverKey(driverID)}, orderID).Err(); err != nil {
		return fmt.Errorf("release driver %s: %w", driverID, err)
	}
	return nil
}

// FindNearby selects candidates with GEOSEARCH and applies the same
// eligibility and ordering rules as the in-memory index.
func (r *RedisIndex) FindNearby(ctx context.Context, p domain.Point, radiusKm float64, now time.Time) ([]domain.DriverRef, error) {
	locs, err := r.rdb.GeoSearchLocation(ctx, r.geoKey(), &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lon,
			Latitude:   p.Lat,
			Radius:     radiusKm * searchSlack,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("geo search: %w", err)
	}

	refs := make([]domain.DriverRef, 0, len(locs))
	if len(locs) == 0 {
		return refs, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(locs))
	for i, loc := range locs {
		cmds[i] = pipe.HGetAll(ctx, r.driverKey(loc.Name))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load drivers: %w", err)
	}

	for i, loc := range locs {
		m, err := cmds[i].Result()
		if err != nil || len(m) == 0 {
			continue
		}
		if ref, ok := match(driverFromHash(loc.Name, m), p, radiusKm, now, r.maxAge); ok {
			refs = append(refs, ref)
		}
	}
	sortRefs(refs)
	return refs, nil
}

// OnlineCount returns the number of online drivers.
func (r *RedisIndex) OnlineCount(ctx context.Context) (int, error) {
	n, err := r.rdb.SCard(ctx, r.onlineKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count online drivers: %w", err)
	}
	return int(n), nil
}

func driverFromHash(id string, m map[string]string) *domain.Driver {
	d := &domain.Driver{
		ID:             id,
		AccountID:      m[fieldAccount],
		Name:           m[fieldName],
		Phone:          m[fieldPhone],
		IsOnline:       m[fieldOnline] == "1",
		IsAvailable:    m[fieldAvailable] == "1",
		ActiveOrderID:  m[fieldActive],
		CommissionRate: domain.DefaultCommissionRate,
	}
	if v, err := strconv.ParseFloat(m[fieldCommission], 64); err == nil && v > 0 {
		d.CommissionRate = v
	}
	if raw := m[fieldVehicle]; raw != "" {
		var v domain.Vehicle
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			d.Vehicle = &v
		}
	}
	lat, errLat := strconv.ParseFloat(m[fieldLat], 64)
	lon, errLon := strconv.ParseFloat(m[fieldLon], 64)
	if errLat == nil && errLon == nil {
		d.Position = &domain.Point{Lat: lat, Lon: lon}
	}
	if ms, err := strconv.ParseInt(m[fieldPosAt], 10, 64); err == nil && ms > 0 {
		d.PositionAt = time.UnixMilli(ms).UTC()
	}
	return d
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
