package redis_client

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"github.com/oracipher/kernel/env_mode"
	"github.com/oracipher/kernel/logging"
	"go.uber.org/zap"
)

func NewRedis(cnf Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cnf.Addr(),
		Password: cnf.Password,
		DB:       cnf.DB,
	})
	pong, err := client.Ping(context.Background()).Result()
	if err != nil {
		return nil, err
	}
	if env_mode.Mode() == env_mode.DevMode {
		logging.Global().Info("redis connected", zap.String("pong", pong), zap.String("config", redisConfigLogFields(cnf)))
	}
	return client, nil
}

func redisConfigLogFields(cnf Config) string {
	return fmt.Sprintf("addr=%s db=%d password=%s", cnf.Addr(), cnf.DB, redactedPassword(cnf.Password))
}

func redactedPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	return "[REDACTED]"
}
