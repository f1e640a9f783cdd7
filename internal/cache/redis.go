package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client mirrors websocket state into Redis: per-user presence for
// other services, and staff group monitoring so every chat instance
// evaluates the same posting rules.
type Client struct {
	rdb    *redis.Client
	prefix string
}

func New(addr, password string, db int, prefix string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb, prefix: prefix}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) key(userID int64) string {
	return fmt.Sprintf("%s:presence:%d", c.prefix, userID)
}

func (c *Client) SetOnline(ctx context.Context, userID int64, online bool) error {
	if !online {
		return c.rdb.Del(ctx, c.key(userID)).Err()
	}
	return c.rdb.Set(ctx, c.key(userID), time.Now().Unix(), 0).Err()
}

func (c *Client) IsOnline(ctx context.Context, userID int64) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// monitorTTL must outlive the websocket ping interval that re-arms the
// keys, with slack for a missed tick.
const monitorTTL = 90 * time.Second

func (c *Client) monitorKey(departmentID int64, connID string) string {
	return fmt.Sprintf("%s:monitor:%d:%s", c.prefix, departmentID, connID)
}

// SetMonitoring records or clears one staff connection watching a
// department group. One key per connection: keys expire on their own,
// so an instance that dies mid-watch stops counting within the TTL.
func (c *Client) SetMonitoring(ctx context.Context, departmentID int64, connID string, on bool) error {
	key := c.monitorKey(departmentID, connID)
	if !on {
		return c.rdb.Del(ctx, key).Err()
	}
	return c.rdb.Set(ctx, key, time.Now().Unix(), monitorTTL).Err()
}

// IsMonitored reports whether any instance holds a live staff connection
// on the department's group.
func (c *Client) IsMonitored(ctx context.Context, departmentID int64) (bool, error) {
	pattern := fmt.Sprintf("%s:monitor:%d:*", c.prefix, departmentID)
	iter := c.rdb.Scan(ctx, 0, pattern, 1).Iterator()
	if iter.Next(ctx) {
		return true, nil
	}
	return false, iter.Err()
}
