package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLoadConfig_RotateService(t *testing.T) {
	t.Setenv("MINIO_HOST", "minio")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ROTATE_PUBLIC_URL", "http://localhost:8090")

	cfg, err := TryLoadConfig[Rotate]("rotate_service", "../../config")
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Engine.MetadataTimeout)
	assert.Equal(t, "memory", cfg.Delivery.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Delivery.TTL)
	assert.Equal(t, "http://localhost:8090", cfg.Delivery.PublicURL)
	assert.Equal(t, 2*time.Second, cfg.MinIO.RetryInterval)
	assert.True(t, cfg.MinIO.Enabled())
	assert.False(t, cfg.Redis.Enabled())
}

func TestTryLoadConfig_ExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
port: "${TEST_ROTATE_PORT}"
engine:
  work_dir: ${TEST_ROTATE_WORKDIR}
  resources:
    - name: ffmpeg
      url: file:///opt/ffmpeg
      digest: abc
kafka:
  brokers: ["${TEST_KAFKA_BROKER}"]
  topic: rotate-results
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "svc.yaml"), []byte(yaml), 0644))
	t.Setenv("TEST_ROTATE_PORT", "9999")
	t.Setenv("TEST_ROTATE_WORKDIR", "/tmp/rotate")
	t.Setenv("TEST_KAFKA_BROKER", "")

	cfg, err := TryLoadConfig[Rotate]("svc", dir)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "/tmp/rotate", cfg.Engine.WorkDir)
	require.Len(t, cfg.Engine.Resources, 1)
	assert.Equal(t, "abc", cfg.Engine.Resources[0].Digest)
	assert.False(t, cfg.Kafka.Enabled(), "empty broker")

	_, err = TryLoadConfig[Rotate]("missing", dir)
	assert.Error(t, err)
}

func TestGetRedisSetting(t *testing.T) {
	t.Setenv("REDIS_MASTER_NAME", "rotate-master")
	t.Setenv("REDIS_SENTINEL1_IP", "10.0.0.1")
	t.Setenv("REDIS_SENTINEL1_PORT", "26379")

	master, addrs := GetRedisSetting()
	assert.Equal(t, "rotate-master", master)
	assert.Contains(t, addrs, "10.0.0.1:26379")
}
