package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PG_DSN", "EXTRACT_CHUNK", "REDIS_DSN", "ELK_DSN", "ELK_INDEX", "LOAD_CHUNK",
	"MONGO_URI", "NATS_URL", "CHECKPOINT_BACKEND", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "content", cfg.Postgres.Schema)
	assert.Equal(t, CheckpointRedis, cfg.Checkpoint.Backend)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, "movies", cfg.Elasticsearch.Index)
	assert.Equal(t, []string{"film_work", "genre", "person"}, cfg.Pipeline.Entities)
	assert.Equal(t, 500, cfg.Pipeline.WindowSize)
	assert.Equal(t, 100, cfg.Pipeline.ExtractChunk)
	assert.Equal(t, 500, cfg.Pipeline.LoadChunk)
	assert.Equal(t, 2500*time.Millisecond, cfg.Pipeline.PollInterval)
	assert.Equal(t, CommitDeferred, cfg.Pipeline.CommitPolicy)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.Backoff.Start)
	assert.Equal(t, 2.0, cfg.Pipeline.Backoff.Factor)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.Backoff.Ceiling)
	assert.Empty(t, cfg.Observability.Address)
}

func TestLoadConfig_MalformedChunkEnvFails(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"EXTRACT_CHUNK", "lots"},
		{"LOAD_CHUNK", "5e2"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig(t.TempDir())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
			assert.Contains(t, err.Error(), tt.value)
		})
	}
}

func TestLoadConfig_EnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_DSN", "postgres://env/db")
	t.Setenv("EXTRACT_CHUNK", "25")
	t.Setenv("LOAD_CHUNK", "75")
	t.Setenv("REDIS_DSN", "redis://env:6379/1")
	t.Setenv("ELK_DSN", "http://es1:9200, http://es2:9200")
	t.Setenv("ELK_INDEX", "films")
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("NATS_URL", "nats://env:4222")
	t.Setenv("CHECKPOINT_BACKEND", "nats")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres://env/db", cfg.Postgres.DSN)
	assert.Equal(t, 25, cfg.Pipeline.ExtractChunk)
	assert.Equal(t, 75, cfg.Pipeline.LoadChunk)
	assert.Equal(t, "redis://env:6379/1", cfg.Checkpoint.Redis.URL)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, "films", cfg.Elasticsearch.Index)
	assert.Equal(t, "mongodb://env:27017", cfg.Checkpoint.MongoDB.URI)
	assert.Equal(t, "nats://env:4222", cfg.Checkpoint.NATS.URL)
	assert.Equal(t, CheckpointNATS, cfg.Checkpoint.Backend)
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
postgres:
  dsn: "postgres://file/db"
  schema: "catalog"
pipeline:
  entities: ["genre"]
  window_size: 50
  poll_interval: 1s
  commit_policy: eager
checkpoint:
  backend: mongodb
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yml"), []byte(`
pipeline:
  window_size: 10
`), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/db", cfg.Postgres.DSN)
	assert.Equal(t, "catalog", cfg.Postgres.Schema)
	assert.Equal(t, []string{"genre"}, cfg.Pipeline.Entities)
	assert.Equal(t, 10, cfg.Pipeline.WindowSize)
	assert.Equal(t, time.Second, cfg.Pipeline.PollInterval)
	assert.Equal(t, CommitEager, cfg.Pipeline.CommitPolicy)
	assert.Equal(t, CheckpointMongoDB, cfg.Checkpoint.Backend)
	assert.Equal(t, "searchsync", cfg.Checkpoint.MongoDB.Database)
}

func TestLoadConfig_ParseError(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.yml"), []byte("not: [valid"), 0644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestLoadConfig_ReadErrorIsIgnored(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	// A directory where a file is expected triggers the read error path
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config.yml"), 0755))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "movies", cfg.Elasticsearch.Index)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
pipeline:
  commit_policy: sometimes
`), 0644))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit_policy")
}

func TestCheckpointConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CheckpointConfig)
		wantErr bool
	}{
		{"redis default", func(*CheckpointConfig) {}, false},
		{"memory", func(c *CheckpointConfig) { c.Backend = CheckpointMemory }, false},
		{"unknown backend", func(c *CheckpointConfig) { c.Backend = "etcd" }, true},
		{"redis without url", func(c *CheckpointConfig) { c.Redis.URL = "" }, true},
		{"mongodb without uri", func(c *CheckpointConfig) {
			c.Backend = CheckpointMongoDB
			c.MongoDB.URI = ""
		}, true},
		{"nats without url", func(c *CheckpointConfig) {
			c.Backend = CheckpointNATS
			c.NATS.URL = ""
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCheckpointConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestPipelineConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PipelineConfig)
	}{
		{"duplicate entity", func(c *PipelineConfig) { c.Entities = []string{"genre", "genre"} }},
		{"empty entity", func(c *PipelineConfig) { c.Entities = []string{""} }},
		{"negative window", func(c *PipelineConfig) { c.WindowSize = -1 }},
		{"zero extract chunk", func(c *PipelineConfig) { c.ExtractChunk = 0 }},
		{"zero load chunk", func(c *PipelineConfig) { c.LoadChunk = 0 }},
		{"negative poll interval", func(c *PipelineConfig) { c.PollInterval = -time.Second }},
		{"factor below one", func(c *PipelineConfig) { c.Backoff.Factor = 0.5 }},
		{"ceiling below start", func(c *PipelineConfig) { c.Backoff.Ceiling = time.Millisecond }},
	}

	def := DefaultPipelineConfig()
	assert.NoError(t, def.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPipelineConfig_EnvOverridesIgnoreGarbage(t *testing.T) {
	t.Setenv("EXTRACT_CHUNK", "lots")
	cfg := DefaultPipelineConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 100, cfg.ExtractChunk)
}

func TestElasticsearchConfig_Validate(t *testing.T) {
	cfg := DefaultElasticsearchConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Addresses = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultElasticsearchConfig()
	cfg.Index = ""
	assert.Error(t, cfg.Validate())
}

func TestPostgresConfig_Validate(t *testing.T) {
	cfg := DefaultPostgresConfig()
	assert.NoError(t, cfg.Validate())

	cfg.DSN = ""
	assert.Error(t, cfg.Validate())
}
