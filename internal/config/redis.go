package config

// This file defines the Redis client constructor.  Redis backs rate limiting
// and the response cache.  If the server cannot be reached at startup the
// constructor returns nil and callers degrade by disabling both features.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
)

// RedisConfig lists the supported connection variables.  REDIS_HOST and
// REDIS_PORT take precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT"`
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	TLS      bool   `env:"REDIS_TLS" envDefault:"false"`
}

func (c RedisConfig) address() string {
	if c.Host != "" && c.Port != "" {
		return c.Host + ":" + c.Port
	}
	return c.Addr
}

// NewRedisClient instantiates a Redis client from the environment.  The
// returned client is nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	rc, err := env.ParseAs[RedisConfig]()
	if err != nil {
		return nil
	}
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.address(),
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
