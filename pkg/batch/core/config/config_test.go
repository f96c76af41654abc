package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
surfin:
  batch:
    job_name: customer
    chunk_size: 25
    delimiter: "|"
    strict: true
    input: ${CSVLOAD_TEST_INPUT}
  adapter:
    database:
      workload:
        type: sqlite
        database: /tmp/w.db
`

func TestLoadConfig_LayersDefaultsYAMLAndEnv(t *testing.T) {
	t.Setenv("CSVLOAD_TEST_INPUT", "/data/customers.csv")
	t.Setenv("SURFIN_BATCH_TARGET_TABLE", "CUSTOMER_INFO")
	t.Setenv("SURFIN_SYSTEM_LOGGING_LEVEL", "DEBUG")

	cfg, err := LoadConfig("", EmbeddedConfig(testYAML))
	require.NoError(t, err)

	b := cfg.Surfin.Batch
	assert.Equal(t, "customer", b.JobName)
	assert.Equal(t, 25, b.ChunkSize)
	assert.True(t, b.Strict)
	assert.Equal(t, "/data/customers.csv", b.Input)
	assert.Equal(t, "CUSTOMER_INFO", b.TargetTable)
	assert.Equal(t, DefaultFieldNames, b.FieldNames)
	assert.Equal(t, "workload", b.Datasource)
	assert.Equal(t, "DEBUG", cfg.Surfin.System.Logging.Level)

	r, err := b.DelimiterRune()
	require.NoError(t, err)
	assert.Equal(t, '|', r)

	require.Contains(t, cfg.Surfin.Adapter.Database, "workload")
}

func TestLoadConfig_EnvOverridesSliceAndInt(t *testing.T) {
	t.Setenv("SURFIN_BATCH_CHUNK_SIZE", "3")
	t.Setenv("SURFIN_BATCH_FIELD_NAMES", "a, b ,c")

	cfg, err := LoadConfig("", EmbeddedConfig("surfin: {}"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Surfin.Batch.ChunkSize)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Surfin.Batch.FieldNames)
}

func TestLoadConfig_RejectsInvalidEnvValue(t *testing.T) {
	t.Setenv("SURFIN_BATCH_CHUNK_SIZE", "ten")
	_, err := LoadConfig("", EmbeddedConfig("surfin: {}"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	cfg.Surfin.Batch.ChunkSize = 0
	cfg.Surfin.Batch.Delimiter = ";;"
	cfg.Surfin.Batch.FieldNames = []string{"id", "id"}
	cfg.Surfin.Infrastructure.JobRepositoryType = "mongo"
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"chunk_size", "delimiter", "twice", "job_repository_type"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDelimiterRune(t *testing.T) {
	for in, want := range map[string]rune{"": ',', ",": ',', "tab": '\t', `\t`: '\t', ";": ';'} {
		got, err := BatchConfig{Delimiter: in}.DelimiterRune()
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := BatchConfig{Delimiter: `"`}.DelimiterRune()
	assert.Error(t, err)
}
