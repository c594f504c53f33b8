package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/airreservation/config"
	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token,
// so an expired lock taken over by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// setFlightsScript stores a search result only while the generation of its
// travel date is still the one read before the store was queried.
var setFlightsScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2])
if not gen then
	gen = "0"
end
if gen ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1`)

// generationTTL outlives any flights entry so a counter never resets under a
// search still holding its old value.
const generationTTL = 48 * time.Hour

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

// GetFlights returns the cached search result of one class and travel date,
// or nil on a miss.
func (c *RedisCache) GetFlights(ctx context.Context, travelDate time.Time, class domain.SeatClass) ([]domain.FlightAvailability, error) {
	data, err := c.client.HGet(ctx, flightsKey(travelDate), string(class)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.FlightAvailability
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

// FlightsGeneration returns the invalidation counter of travelDate. A date
// never invalidated is at generation 0.
func (c *RedisCache) FlightsGeneration(ctx context.Context, travelDate time.Time) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(travelDate)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetFlights caches flights unless travelDate was invalidated since generation
// was read. A skipped write is not an error.
func (c *RedisCache) SetFlights(ctx context.Context, travelDate time.Time, class domain.SeatClass, generation int64, flights []domain.FlightAvailability) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	keys := []string{flightsKey(travelDate), generationKey(travelDate)}
	return setFlightsScript.Run(ctx, c.client, keys, generation, string(class), payload, c.flightsTTL.Milliseconds()).Err()
}

// InvalidateFlights drops every cached search of travelDate and bumps its
// generation so searches already in flight do not write back.
func (c *RedisCache) InvalidateFlights(ctx context.Context, travelDate time.Time) error {
	genKey := generationKey(travelDate)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, flightsKey(travelDate))
	_, err := pipe.Exec(ctx)
	return err
}

// AcquireScopeLock takes the booking lock of one (flight, class, date) scope.
// The returned token must be handed back to ReleaseScopeLock.
func (c *RedisCache) AcquireScopeLock(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, scopeLockKey(flightCode, class, travelDate), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (c *RedisCache) ReleaseScopeLock(ctx context.Context, flightCode int64, class domain.SeatClass, travelDate time.Time, token string) error {
	return releaseScript.Run(ctx, c.client, []string{scopeLockKey(flightCode, class, travelDate)}, token).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func flightsKey(travelDate time.Time) string {
	return "cache:flights:" + domain.DateOf(travelDate).Format(time.DateOnly)
}

func generationKey(travelDate time.Time) string {
	return "cache:flights:gen:" + domain.DateOf(travelDate).Format(time.DateOnly)
}

func scopeLockKey(flightCode int64, class domain.SeatClass, travelDate time.Time) string {
	return fmt.Sprintf("lock:flight:%d:class:%s:date:%s", flightCode, class, domain.DateOf(travelDate).Format(time.DateOnly))
}
