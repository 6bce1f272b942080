package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "windfall-raffle", cfg.Service.Name)
	assert.Equal(t, 8080, cfg.Service.HTTPPort)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, -1, cfg.Kafka.Producer.RequiredAcks)
	assert.Equal(t, int64(1), cfg.Node.ID)
	assert.Equal(t, 30, cfg.Raffle.LockExpirySec)
	assert.True(t, cfg.Worker.Expiry.Enabled)
	assert.Equal(t, 600, cfg.Worker.StuckDraw.StuckAfterSec)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
service:
  name: raffle-test
  http_port: 9090
raffle:
  platform_wallet: "0x00000000000000000000000000000000000000aa"
  operators:
    - "0x00000000000000000000000000000000000000bb"
worker:
  expiry:
    enabled: false
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "raffle-test", cfg.Service.Name)
	assert.Equal(t, 9090, cfg.Service.HTTPPort)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", cfg.Raffle.PlatformWallet)
	assert.Equal(t, []string{"0x00000000000000000000000000000000000000bb"}, cfg.Raffle.Operators)
	assert.False(t, cfg.Worker.Expiry.Enabled)

	// 文件未覆盖的字段保留默认值
	assert.Equal(t, "postgres", cfg.Database.User)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka.internal:9092")
	t.Setenv("NODE_ID", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka.internal:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(7), cfg.Node.ID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service: [broken"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}
