package cache

import (
	"time"

	"github.com/erp/commerce-recurly/internal/infrastructure/config"
)

func configForBackend(backend string) config.IdempotencyConfig {
	return config.IdempotencyConfig{Backend: backend, TTL: time.Hour}
}

// unreachableRedis points at a port nothing listens on
func unreachableRedis() config.RedisConfig {
	return config.RedisConfig{Host: "127.0.0.1", Port: 1}
}
