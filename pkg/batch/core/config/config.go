// Package config holds the application configuration of the batch loader.
package config

// EmbeddedConfig holds the raw bytes of the application YAML, typically embedded by main.
type EmbeddedConfig []byte

// DefaultFieldNames is the field layout of the customer input file.
var DefaultFieldNames = []string{"id", "firstName", "lastName", "email", "gender", "contact", "country", "dob"}

// BatchConfig holds the settings of the chunk-oriented load.
type BatchConfig struct {
	// JobName is the name the job is launched under.
	JobName string `yaml:"job_name"`
	// ChunkSize is the number of records committed per transaction. Must be positive.
	ChunkSize int `yaml:"chunk_size"`
	// Delimiter is the single field separator character. "tab" and "\t" mean a tab.
	Delimiter string `yaml:"delimiter"`
	// FieldNames names the input fields in order.
	FieldNames []string `yaml:"field_names"`
	// Strict makes a field count mismatch fail instead of padding or truncating.
	Strict bool `yaml:"strict"`
	// LinesToSkip is the number of header lines ignored at the top of the input.
	LinesToSkip int `yaml:"lines_to_skip"`
	// Input is the input location: a file path, file:// or gs:// URL.
	Input string `yaml:"input"`
	// TargetTable is the table the records are inserted into.
	TargetTable string `yaml:"target_table"`
	// Datasource names the surfin.adapter.database entry holding the target table.
	Datasource string `yaml:"datasource"`
	// ExclusiveCommit serializes chunk transactions across every step sharing the datasource.
	ExclusiveCommit bool `yaml:"exclusive_commit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // DEBUG, INFO, WARN, ERROR
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // listen address of /metrics, e.g. ":9090"
	// AsyncBufferSize is the event queue length of the asynchronous recorder; 0 records synchronously.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// TracingConfig controls the OTLP trace exporter. Tracing is off when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"` // host:port of an OTLP/HTTP collector
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// InfrastructureConfig holds the settings of the job metadata store and observability.
type InfrastructureConfig struct {
	// JobRepositoryType is "sql" or "inmemory". The in-memory repository loses
	// checkpoints when the process exits.
	JobRepositoryType string `yaml:"job_repository_type"`
	// JobRepositoryDBRef is the database connection used by the SQL job repository.
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
	// MigrateOnStart applies the embedded migrations before the job runs.
	MigrateOnStart bool          `yaml:"migrate_on_start"`
	Metrics        MetricsConfig `yaml:"metrics"`
	Tracing        TracingConfig `yaml:"tracing"`
}

// AdapterConfig holds adapter settings keyed by connection name.
// Entries are decoded by the adapter that owns them.
type AdapterConfig struct {
	Database map[string]interface{} `yaml:"database"`
	Storage  map[string]interface{} `yaml:"storage"`
}

// SurfinConfig holds everything under the "surfin" top-level key.
type SurfinConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Adapter        AdapterConfig        `yaml:"adapter"`
}

// Config is the root of the application configuration.
type Config struct {
	Surfin SurfinConfig `yaml:"surfin"`
}

// NewConfig returns a Config holding the defaults.
func NewConfig() *Config {
	return &Config{
		Surfin: SurfinConfig{
			Batch: BatchConfig{
				ChunkSize:  10,
				Delimiter:  ",",
				FieldNames: append([]string(nil), DefaultFieldNames...),
				Datasource: "workload",
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryType:  "sql",
				JobRepositoryDBRef: "metadata",
				Metrics:            MetricsConfig{Address: ":9090"},
				Tracing:            TracingConfig{ServiceName: "csvload"},
			},
			Adapter: AdapterConfig{
				Database: map[string]interface{}{},
				Storage:  map[string]interface{}{},
			},
		},
	}
}
