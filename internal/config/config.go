package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"spreadsheet-service/internal/MinIO"
	"spreadsheet-service/pkg/database/postgres"
	"spreadsheet-service/pkg/database/redis"
)

type Config struct {
	Postgres postgres.Config
	Redis    redis.RedisConfig
	MinIO    MinIO.Config
}

// Load reads ./.env when present, otherwise plain environment variables.
func Load() (*Config, error) {
	var cfg Config
	if _, err := os.Stat(".env"); err == nil {
		if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
