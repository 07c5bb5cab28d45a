package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad(t *testing.T) {
	t.Run("Defaults with env overrides", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("JWT_SECRET", testSecret)
		t.Setenv("PRICING_PRO_MONTHLY", "1500")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Store.Driver)
		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, 1500.0, cfg.Pricing.Pro.Monthly)
		assert.Equal(t, 9990.0, cfg.Pricing.Pro.Yearly)
	})

	t.Run("Reads environment specific file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
		yaml := "store:\n  driver: redis\nredis:\n  addr: cache:6379\njwt:\n  secret: " + testSecret + "\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.staging.yaml"), []byte(yaml), 0o644))
		t.Chdir(dir)
		t.Setenv("APP_ENV", "staging")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Store.Driver)
		assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	})

	t.Run("Short secret is rejected", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("JWT_SECRET", "short")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := &Config{JWT: JWTConfig{Secret: testSecret}, Store: StoreConfig{Driver: "postgres"}}
	assert.Error(t, cfg.Validate())

	cfg.Database = DatabaseConfig{Host: "db", User: "app", DBName: "coupons"}
	assert.NoError(t, cfg.Validate())

	cfg.Store.Driver = "etcd"
	assert.Error(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "app", Password: "p@ss/word", DBName: "coupons", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/coupons?sslmode=disable", d.DSN())
}
