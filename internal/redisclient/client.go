package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/unlock.lua
var unlockScript string

const balanceCacheTTL = 5 * time.Minute

type Client struct {
	rdb    *redis.Client
	unlock *redis.Script
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:    rdb,
		unlock: redis.NewScript(unlockScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock takes a best-effort mutex. It returns the fencing token to
// release with and whether the lock was obtained. Callers treat failures
// as "proceed without the lock": the database's conditional writes remain
// the authoritative guard.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseLock releases a lock, but only for the holder of token. The
// compare-and-delete runs as a Lua script so an expired lock grabbed by
// another caller is never deleted out from under them.
func (c *Client) ReleaseLock(ctx context.Context, key, token string) error {
	_, err := c.unlock.Run(ctx, c.rdb, []string{"lock:" + key}, token).Result()
	return err
}

// SetBalance caches an account balance after a committed mutation
func (c *Client) SetBalance(ctx context.Context, userID, balance int64) error {
	return c.rdb.Set(ctx, balanceKey(userID), balance, balanceCacheTTL).Err()
}

// GetBalance returns a cached balance and whether the cache held one
func (c *Client) GetBalance(ctx context.Context, userID int64) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, balanceKey(userID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cached balance: %w", err)
	}
	return balance, true, nil
}

// InvalidateBalance drops the cached balance for a user
func (c *Client) InvalidateBalance(ctx context.Context, userID int64) error {
	return c.rdb.Del(ctx, balanceKey(userID)).Err()
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}
