package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init initializes the Redis client
func Init(url, password string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return err
	}

	if password != "" {
		opts.Password = password
	}

	client = redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pingClient(ctx, client); err != nil {
		return err
	}

	return nil
}

// pingClient checks that c answers a PING.
func pingClient(ctx context.Context, c *redis.Client) error {
	return c.Ping(ctx).Err()
}

// SetClient sets the Redis client (used for testing)
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

// Set stores a key-value pair with expiration
func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value by key
func Get(ctx context.Context, key string) (string, error) {
	return client.Get(ctx, key).Result()
}

// Del removes a key
func Del(ctx context.Context, key string) error {
	return client.Del(ctx, key).Err()
}

// SetNX sets a key only if it does not exist
func SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return client.SetNX(ctx, key, value, expiration).Result()
}

// Lock acquires a cross-instance mutual-exclusion lock keyed by name,
// backing the per-sender exclusivity section so it holds across multiple
// engine instances, not just within one process. token must be unique per
// holder so Unlock never releases someone else's lock.
func Lock(ctx context.Context, name, token string, ttl time.Duration) (bool, error) {
	return SetNX(ctx, "lock:"+name, token, ttl)
}

// unlockScript only deletes the key if it still holds our token, so a
// lock that expired and was re-acquired by another holder is never
// clobbered by a late Unlock call.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Unlock releases a lock previously acquired with Lock, only if token
// still matches.
func Unlock(ctx context.Context, name, token string) error {
	return unlockScript.Run(ctx, client, []string{"lock:" + name}, token).Err()
}
