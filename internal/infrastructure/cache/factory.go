package cache

import (
	"context"
	"fmt"

	"github.com/erp/commerce-recurly/internal/domain/shared"
	"github.com/erp/commerce-recurly/internal/infrastructure/config"
	"go.uber.org/zap"
)

type storeOptions struct {
	logger        *zap.Logger
	allowFallback bool
}

// StoreOption tunes OpenIdempotencyStore.
type StoreOption func(*storeOptions)

func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) { o.logger = logger }
}

// WithInMemoryFallback decides what happens when the redis backend is
// configured but unreachable. Fallback is on unless disabled here.
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) { o.allowFallback = allow }
}

// OpenIdempotencyStore returns the store named by idem.Backend. The
// in-memory store only sees claims made by this instance.
func OpenIdempotencyStore(ctx context.Context, idem config.IdempotencyConfig, rc config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	o := storeOptions{logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With(zap.String("backend", idem.Backend))

	if idem.Backend != "redis" {
		log.Info("Idempotency store ready", zap.String("store", "memory"))
		return NewInMemoryIdempotencyStore(0), nil
	}

	store, err := NewRedisIdempotencyStore(ctx, RedisConfig{
		Host:      rc.Host,
		Port:      rc.Port,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: idem.KeyPrefix,
	})
	switch {
	case err == nil:
		log.Info("Idempotency store ready", zap.String("store", "redis"))
		return store, nil
	case !o.allowFallback:
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	log.Warn("Redis unreachable, payment return claims fall back to this instance's memory",
		zap.String("store", "memory"),
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(0), nil
}
