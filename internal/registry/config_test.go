package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type acceptingValidator struct{ storageType string }

func (v acceptingValidator) Type() string                          { return v.storageType }
func (v acceptingValidator) Validate(config *InternalConfig) error { return nil }

func init() {
	RegisterValidator(acceptingValidator{storageType: "memory"})
}

func TestConfigManager_Defaults(t *testing.T) {
	cm := NewConfigManager()
	cfg := cm.GetConfig()
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.Catalog.Type)
	assert.Equal(t, "sync", cfg.Indexing.Mode)
	assert.Equal(t, 20, cfg.Query.DefaultLimit)
	assert.False(t, cfg.Query.UnifiedRangeJoin)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestConfigManager_LoadFromYAML(t *testing.T) {
	cm := NewConfigManager()
	err := cm.LoadFromYAML([]byte(`
storage:
  type: memory
query:
  unified_range_join: true
  default_limit: 5
  max_limit: 50
indexing:
  mode: async
  queue_type: memory
`))
	require.NoError(t, err)
	cfg := cm.GetConfig()
	assert.True(t, cfg.Query.UnifiedRangeJoin)
	assert.Equal(t, 5, cfg.Query.DefaultLimit)
	assert.Equal(t, "async", cfg.Indexing.Mode)
	// untouched sections keep their defaults
	assert.Equal(t, 100, cfg.Indexing.BatchSize)
}

func TestConfigManager_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown storage", "storage:\n  type: cassandra\n"},
		{"async without queue", "storage:\n  type: memory\nindexing:\n  mode: async\n"},
		{"bad mode", "storage:\n  type: memory\nindexing:\n  mode: eventually\n"},
		{"bad catalog", "storage:\n  type: memory\ncatalog:\n  type: postgres\n"},
		{"mysql without database", "storage:\n  type: memory\ncatalog:\n  type: mysql\n"},
		{"limits inverted", "storage:\n  type: memory\nquery:\n  default_limit: 10\n  max_limit: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := NewConfigManager()
			assert.Error(t, cm.LoadFromYAML([]byte(tt.yaml)))
			assert.Equal(t, "sync", cm.GetConfig().Indexing.Mode)
		})
	}
}

func TestConfigManager_LoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dynamoplus.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"storage":{"type":"memory"},"server":{"address":":9090"}}`), 0o600))

	cm := NewConfigManager()
	require.NoError(t, cm.LoadFromFile(path))
	assert.Equal(t, ":9090", cm.GetConfig().Server.Address)

	assert.Error(t, cm.LoadFromFile(filepath.Join(dir, "dynamoplus.toml")))

	t.Setenv("DYNAMOPLUS_STORAGE_TYPE", "memory")
	t.Setenv("DYNAMOPLUS_QUERY_DEFAULT_LIMIT", "7")
	t.Setenv("DYNAMOPLUS_INDEXING_MODE", "async")
	t.Setenv("DYNAMOPLUS_INDEXING_QUEUE_TYPE", "redis")
	t.Setenv("DYNAMOPLUS_INDEXING_REDIS_ENDPOINTS", "r1:6379,r2:6379")
	require.NoError(t, cm.LoadFromEnv())
	cfg := cm.GetConfig()
	assert.Equal(t, 7, cfg.Query.DefaultLimit)
	assert.Equal(t, []string{"r1:6379", "r2:6379"}, cfg.Indexing.RedisConfig.Endpoints)
}
