package dynamoplus

import (
	"time"
)

// Config represents the root configuration of a dynamoplus client.
// Zero-valued fields keep their defaults.
type Config struct {
	// Storage contains configuration for the ordered key-value store holding the single table.
	Storage StorageConfig `yaml:"storage,omitempty" json:"storage,omitempty"`

	// Catalog contains configuration for the catalog of collections, indexes and aggregations.
	Catalog CatalogConfig `yaml:"catalog,omitempty" json:"catalog,omitempty"`

	// Indexing contains configuration for index and aggregation maintenance.
	Indexing IndexingConfig `yaml:"indexing,omitempty" json:"indexing,omitempty"`

	// Query contains query compilation and paging settings.
	Query QueryConfig `yaml:"query,omitempty" json:"query,omitempty"`

	// Server contains HTTP transport settings.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`
}

// StorageConfig contains configuration for the storage driver.
type StorageConfig struct {
	// Type specifies the driver: "dynamodb", "bolt" or "memory".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	DynamoDB  DynamoDBConfig  `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`
	Bolt      BoltConfig      `yaml:"bolt_config,omitempty" json:"bolt_config,omitempty"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`

	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	TableName string `yaml:"table_name,omitempty" json:"table_name,omitempty"`

	// Endpoint overrides the AWS endpoint, e.g. for LocalStack or DynamoDB Local.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// AccessKeyID and SecretAccessKey are optional; the default credential chain is used otherwise.
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`

	// CreateTable creates the table and its sk-data-index projection when missing.
	CreateTable bool `yaml:"create_table,omitempty" json:"create_table,omitempty"`
}

// BoltConfig contains configuration for the embedded bbolt driver.
type BoltConfig struct {
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Compress bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// RateLimitConfig caps the storage calls issued per second.
type RateLimitConfig struct {
	Enabled      bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	OpsPerSecond int  `yaml:"ops_per_second,omitempty" json:"ops_per_second,omitempty"`
	Burst        int  `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// CatalogConfig contains configuration for the catalog.
type CatalogConfig struct {
	// Type is "memory", "table" (system entities in the single table) or "mysql".
	Type     string         `yaml:"type,omitempty" json:"type,omitempty"`
	Database DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`
	Cache    CacheConfig    `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// DatabaseConfig contains configuration for the MySQL catalog.
type DatabaseConfig struct {
	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Database          string        `yaml:"database,omitempty" json:"database,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// CacheConfig contains configuration for the Redis read-through catalog cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Redis   RedisConfig   `yaml:"redis,omitempty" json:"redis,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Endpoints    []string      `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	ClusterMode  bool          `yaml:"cluster_mode,omitempty" json:"cluster_mode,omitempty"`
	Password     string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int           `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int           `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int           `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// IndexingConfig contains configuration for index and aggregation maintenance.
type IndexingConfig struct {
	// Mode is "sync" or "async". In async mode writes only store the primary row and
	// the Drainer maintains indexes and aggregations from the change queue.
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// BatchSize is how many change events the drainer dequeues at once.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// DrainRate is the maximum number of change events applied per second.
	DrainRate int `yaml:"drain_rate,omitempty" json:"drain_rate,omitempty"`

	// MaxRetries is the number of retries of a failed change event before it is dropped.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`

	RetryBackoffBase time.Duration `yaml:"retry_backoff_base,omitempty" json:"retry_backoff_base,omitempty"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max,omitempty" json:"retry_backoff_max,omitempty"`

	// QueueType is "memory", "redis" or "kafka". Required in async mode; in sync mode a
	// configured queue receives the change feed.
	QueueType       string      `yaml:"queue_type,omitempty" json:"queue_type,omitempty"`
	QueueBufferSize int         `yaml:"queue_buffer_size,omitempty" json:"queue_buffer_size,omitempty"`
	Redis           RedisConfig `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	RedisQueueKey   string      `yaml:"redis_queue_key,omitempty" json:"redis_queue_key,omitempty"`
	Kafka           KafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// KafkaConfig contains configuration for the Kafka change queue.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	Topic           string        `yaml:"topic,omitempty" json:"topic,omitempty"`
	GroupID         string        `yaml:"group_id,omitempty" json:"group_id,omitempty"`
	BatchSize       int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout    time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	RequiredAcks    int           `yaml:"required_acks,omitempty" json:"required_acks,omitempty"` // 0, 1, or -1 (all)
	MaxMessageBytes int           `yaml:"max_message_bytes,omitempty" json:"max_message_bytes,omitempty"`
	MinBytes        int           `yaml:"min_bytes,omitempty" json:"min_bytes,omitempty"`
	MaxBytes        int           `yaml:"max_bytes,omitempty" json:"max_bytes,omitempty"`
	MaxWait         time.Duration `yaml:"max_wait,omitempty" json:"max_wait,omitempty"`
}

// QueryConfig contains query settings.
type QueryConfig struct {
	// UnifiedRangeJoin joins the values of a range tail with "#" like index rows do.
	// Off by default, in which case conjunctions ending in a range join the tail with "__".
	UnifiedRangeJoin bool `yaml:"unified_range_join,omitempty" json:"unified_range_join,omitempty"`

	DefaultLimit int `yaml:"default_limit,omitempty" json:"default_limit,omitempty"`
	MaxLimit     int `yaml:"max_limit,omitempty" json:"max_limit,omitempty"`
}

// ServerConfig contains HTTP transport settings.
type ServerConfig struct {
	Address         string        `yaml:"address,omitempty" json:"address,omitempty"`
	ReadTimeout     time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
}

// DefaultConfig returns a configuration running entirely in memory.
func DefaultConfig() *Config {
	return &Config{
		Storage:  StorageConfig{Type: "memory"},
		Catalog:  CatalogConfig{Type: "memory"},
		Indexing: IndexingConfig{Mode: "sync"},
		Query: QueryConfig{
			DefaultLimit: 20,
			MaxLimit:     1000,
		},
	}
}
