package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ManuelReschke/comanda/internal/pkg/config"
)

// New connects to the Redis/Dragonfly cache server. It returns nil when no
// host is configured; callers treat that as "no cache". A failed ping is
// logged and the client is still returned, go-redis reconnects on demand.
func New(cfg config.Cache, log *logrus.Entry) *redis.Client {
	if cfg.Host == "" {
		log.Info("cache host not configured, running without cache")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("could not connect to cache server")
	} else {
		log.WithField("addr", Addr(cfg)).Info("connected to cache server")
	}
	return client
}

func Addr(cfg config.Cache) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// limiterDB keeps rate limiter keys apart from the webhook counters in DB 0.
const limiterDB = 1

// NewStorage returns Redis-backed fiber storage for the rate limiter, or nil
// when the cache is absent or unreachable. redisstorage.New panics on a
// failed ping, so reachability is checked through client first.
func NewStorage(cfg config.Cache, client *redis.Client, log *logrus.Entry) fiber.Storage {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("cache unreachable, rate limiter falls back to memory")
		return nil
	}

	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		Database: cfg.DB + limiterDB,
		Reset:    false,
	})
}
