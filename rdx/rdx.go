package rdx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over go-redis exposing just the operations the
// application needs: expiring keys for reset tokens and pub/sub for events.
type Client struct {
	Conn *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{Conn: conn}, nil
}

func (c *Client) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Conn.Set(ctx, key, value, ttl).Err()
}

// Get returns the value for key, or redis.Nil when the key is missing or
// already expired.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.Conn.Get(ctx, key).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.Conn.Del(ctx, keys...).Err()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.Conn.Publish(ctx, channel, payload).Err()
}

func (c *Client) Close() error {
	return c.Conn.Close()
}

// IsNil reports whether err means "key not found".
func IsNil(err error) bool {
	return err == redis.Nil
}
