package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"socialchat/tools/errs"
)

// Config is used to build a client. URL wins over Addr when both are set.
type Config struct {
	URL      string
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient connects and pings within 3s.
func NewClient(ctx context.Context, c Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, errs.WrapMsg(err, "parse redis url")
		}
		if c.PoolSize > 0 {
			parsed.PoolSize = c.PoolSize
		}
		opts = parsed
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.WrapMsg(err, "redis ping", "addr", opts.Addr)
	}
	return rdb, nil
}
