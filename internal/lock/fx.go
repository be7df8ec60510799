package lock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/cobranca/internal/config"
	"go.uber.org/fx"
)

// NewRedisClient returns nil when no redis address is configured; the
// scheduler then runs without cross-replica locking.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

var Module = fx.Module("lock",
	fx.Provide(
		NewRedisClient,
		NewLocker,
	),
)
