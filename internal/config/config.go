package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN             string `env:"DATABASE_DSN,required=true"`
	RedisURL                string `env:"REDIS_URL,required=true"`
	NotifyWebhookURL        string `env:"NOTIFY_WEBHOOK_URL,required=true"`
	RateLimitPerSec         int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	DispatchScanIntervalSec int    `env:"DISPATCH_SCAN_INTERVAL_SEC,default=15"`
	APIPort                 int    `env:"API_PORT,default=8080"`
	LogLevel                string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
