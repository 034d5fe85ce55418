package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))
	return file
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, int64(8080), cfg.Port)
	assert.Equal(t, StorageRedis, cfg.Storage)
	assert.Equal(t, "localhost:6379", cfg.RedisServer.Addr)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "messageboard", cfg.MongoServer.Database)
	assert.False(t, cfg.MongoServer.Transactions)
}

func TestLoadConfigFile(t *testing.T) {
	file := writeConfig(t, `{
		"port": 9090,
		"storage": "mongo",
		"request_timeout": "5s",
		"redis_server": {"addr": "redis:6379", "password": "secret", "db": 2},
		"mongo_server": {"uri": "mongodb://mongo:27017/?replicaSet=rs0", "database": "board", "transactions": true}
	}`)

	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, int64(9090), cfg.Port)
	assert.Equal(t, StorageMongo, cfg.Storage)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, RedisServer{Addr: "redis:6379", Password: "secret", DB: 2}, cfg.RedisServer)
	assert.Equal(t, MongoServer{URI: "mongodb://mongo:27017/?replicaSet=rs0", Database: "board", Transactions: true}, cfg.MongoServer)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	file := writeConfig(t, `{"redis_server": {"addr": "redis:6379"}}`)
	t.Setenv("MESSAGES_REDIS_SERVER_ADDR", "override:6379")
	t.Setenv("MESSAGES_STORAGE", "memory")

	cfg, err := LoadConfig(file)
	require.NoError(t, err)

	assert.Equal(t, "override:6379", cfg.RedisServer.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"storage": "postgres"}`))
	assert.ErrorContains(t, err, "unknown storage")

	_, err = LoadConfig(writeConfig(t, `{"port": 0}`))
	assert.ErrorContains(t, err, "invalid port")
}
