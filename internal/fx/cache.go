package fx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const ratesCacheKey = "fx:rates:current"

// Cache stores the latest rate set in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached rate set when present.
func (c *Cache) Get(ctx context.Context) (RateSet, bool, error) {
	if c == nil || c.client == nil {
		return RateSet{}, false, nil
	}
	raw, err := c.client.Get(ctx, ratesCacheKey).Bytes()
	if err == redis.Nil {
		return RateSet{}, false, nil
	}
	if err != nil {
		return RateSet{}, false, err
	}
	var rates RateSet
	if err := json.Unmarshal(raw, &rates); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next fetch.
		return RateSet{}, false, nil
	}
	return rates, true, nil
}

// Set stores the rate set with the configured TTL.
func (c *Cache) Set(ctx context.Context, rates RateSet) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ratesCacheKey, raw, c.ttl).Err()
}
