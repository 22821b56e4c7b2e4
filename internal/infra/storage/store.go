package storage

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"esign-examples/internal/infra/logging"
)

// RedisConfig selects the Redis instance backing sessions and limiter state.
type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns a Redis-backed fiber.Storage, or an in-memory one when no
// address is configured or Redis cannot be reached.
func NewStore(cfg RedisConfig) (store fiber.Storage) {
	store = memoryStorage.New()
	if cfg.Addr == "" {
		return store
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis session store init panicked, falling back to memory", "panic", r)
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	})
	logging.Info("Using Redis for session storage", "addr", cfg.Addr, "db", cfg.DB)
	return store
}
