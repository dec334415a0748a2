package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"spreadsheet-service/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoad_FromEnvFile(t *testing.T) {
	td := t.TempDir()

	envContent := `POSTGRES_HOST=db.internal
POSTGRES_PORT=5433
POSTGRES_USER=sheets
POSTGRES_PASSWORD=secret
POSTGRES_DB=sheets

REDIS_HOST=cache.internal
REDIS_PORT=6380
REDIS_PASSWORD=
REDIS_DB=0

MINIO_ENDPOINT=minio:9000
MINIO_BUCKET_NAME=spreadsheet-media
`
	if err := os.WriteFile(filepath.Join(td, ".env"), []byte(envContent), 0o644); err != nil {
		t.Fatal(err)
	}

	origWd, _ := os.Getwd()
	defer os.Chdir(origWd)
	if err := os.Chdir(td); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load()
	assert.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, uint16(5433), cfg.Postgres.Port)
	assert.Equal(t, "sheets", cfg.Postgres.Username)
	assert.Equal(t, "secret", cfg.Postgres.Password)
	assert.Equal(t, "sheets", cfg.Postgres.Database)

	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, "6380", cfg.Redis.Port)

	assert.Equal(t, "minio:9000", cfg.MinIO.MinioEndpoint)
	assert.Equal(t, "spreadsheet-media", cfg.MinIO.BucketName)
}

func TestLoad_DefaultsWithoutEnvFile(t *testing.T) {
	td := t.TempDir()
	origWd, _ := os.Getwd()
	defer os.Chdir(origWd)
	if err := os.Chdir(td); err != nil {
		t.Fatal(err)
	}

	os.Unsetenv("POSTGRES_HOST")
	os.Unsetenv("REDIS_HOST")
	os.Unsetenv("MINIO_ENDPOINT")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "minio:9000", cfg.MinIO.MinioEndpoint)
}
