package db

import (
	"context"
	"encoding/json"
	"time"

	"codebin/cfg"
	"codebin/pkg/domain"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const pasteKeyPrefix = "codebin:paste:"

// Redis is a shared read-through cache in front of SQLite. Paste records never
// change after creation, so a cached copy is never stale.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
	ttl     time.Duration
}

// cachedPaste carries the pin hash, which domain.Paste hides from JSON.
type cachedPaste struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	PinHash   string    `json:"pin_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRedis(c *cfg.Cfg) (*Redis, error) {
	opt, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	opt.PoolSize = 20
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond
	if c.RedisPassword.Value() != "" {
		opt.Password = c.RedisPassword.Value()
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return NewRedisFromClient(client, c.RedisTimeout, c.RedisCacheTTL), nil
}

func NewRedisFromClient(client *redis.Client, timeout, ttl time.Duration) *Redis {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Redis{client: client, timeout: timeout, ttl: ttl}
}

func encodePaste(p *domain.Paste) ([]byte, error) {
	return json.Marshal(cachedPaste{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		PinHash:   p.PinHash,
		CreatedAt: p.CreatedAt,
	})
}

func decodePaste(data []byte) (*domain.Paste, error) {
	var c cachedPaste
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &domain.Paste{
		ID:        c.ID,
		Title:     c.Title,
		Content:   c.Content,
		PinHash:   c.PinHash,
		CreatedAt: c.CreatedAt,
	}, nil
}

func (r *Redis) CachePaste(ctx context.Context, p *domain.Paste) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := encodePaste(p)
	if err != nil {
		return errors.Wrap(err, "marshal paste")
	}
	return errors.Wrap(r.client.Set(ctx, pasteKeyPrefix+p.ID, data, r.ttl).Err(), "set paste")
}

// GetPaste returns nil, nil on a cache miss.
func (r *Redis) GetPaste(ctx context.Context, id string) (*domain.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := r.client.Get(ctx, pasteKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get paste")
	}
	p, err := decodePaste(data)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal paste")
	}
	return p, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
