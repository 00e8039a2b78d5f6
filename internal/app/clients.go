package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursehub-backend/internal/data/db"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/realtime/bus"
)

type Clients struct {
	DB *db.Service
	// Redis and Bus are nil when REDIS_ADDR is unset; the process then runs single-instance.
	Redis goredis.UniversalClient
	Bus   bus.Bus
}

func (c Config) DBConfig() db.Config {
	return db.Config{
		Driver:     c.DBDriver,
		Host:       c.PostgresHost,
		Port:       c.PostgresPort,
		User:       c.PostgresUser,
		Password:   c.PostgresPassword,
		Name:       c.PostgresName,
		SSLMode:    c.PostgresSSLMode,
		SQLitePath: c.SQLitePath,
	}
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	dbs, err := db.NewService(log, cfg.DBConfig())
	if err != nil {
		return Clients{}, fmt.Errorf("init db: %w", err)
	}

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info("REDIS_ADDR not set; realtime and locks stay in-process")
		return Clients{DB: dbs}, nil
	}
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    strings.Split(cfg.RedisAddr, ","),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		_ = dbs.Close()
		return Clients{}, fmt.Errorf("redis ping: %w", err)
	}
	b, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
	if err != nil {
		_ = rdb.Close()
		_ = dbs.Close()
		return Clients{}, fmt.Errorf("init redis bus: %w", err)
	}
	return Clients{DB: dbs, Redis: rdb, Bus: b}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
