package registry

import (
	"time"
)

// InternalConfig represents the internal configuration structure.
// This is a copy of the public Config type to avoid import cycles.
type InternalConfig struct {
	Storage  InternalStorageConfig  `yaml:"storage" json:"storage"`
	Catalog  InternalCatalogConfig  `yaml:"catalog" json:"catalog"`
	Indexing InternalIndexingConfig `yaml:"indexing" json:"indexing"`
	Query    InternalQueryConfig    `yaml:"query" json:"query"`
	Server   InternalServerConfig   `yaml:"server" json:"server"`
}

// InternalStorageConfig contains configuration for the ordered key-value store holding the single table.
// Backends (DynamoDB, bolt, memory) plug in through the driver factory registry.
type InternalStorageConfig struct {
	Type           string                  `yaml:"type" json:"type"`
	DynamoDBConfig InternalDynamoDBConfig  `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`
	BoltConfig     InternalBoltConfig      `yaml:"bolt_config,omitempty" json:"bolt_config,omitempty"`
	RateLimit      InternalRateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	MaxRetries     int                     `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout    time.Duration           `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout    time.Duration           `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout   time.Duration           `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`

	// CreateTable creates the table and its sk-data-index projection when missing.
	CreateTable bool `yaml:"create_table,omitempty" json:"create_table,omitempty"`
}

// InternalBoltConfig contains configuration for the embedded bbolt driver.
type InternalBoltConfig struct {
	Path string `yaml:"path" json:"path"`

	// Compress stores documents lz4-compressed.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// InternalRateLimitConfig caps the storage calls issued per second.
type InternalRateLimitConfig struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	OpsPerSecond int  `yaml:"ops_per_second" json:"ops_per_second"`
	Burst        int  `yaml:"burst" json:"burst"`
}

// InternalCatalogConfig contains configuration for the catalog of collections, indexes and aggregations.
type InternalCatalogConfig struct {
	// Type is one of "memory", "table" (system entities in the single table) or "mysql".
	Type     string                 `yaml:"type" json:"type"`
	Database InternalDatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`
	Cache    InternalCacheConfig    `yaml:"cache,omitempty" json:"cache,omitempty"`
}

// InternalDatabaseConfig contains configuration for the relational catalog database.
type InternalDatabaseConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	Database          string        `yaml:"database" json:"database"`
	Username          string        `yaml:"username" json:"username"`
	Password          string        `yaml:"password" json:"password"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// InternalCacheConfig contains configuration for the Redis read-through catalog cache.
type InternalCacheConfig struct {
	Enabled bool                `yaml:"enabled" json:"enabled"`
	Redis   InternalRedisConfig `yaml:"redis" json:"redis"`
	TTL     time.Duration       `yaml:"ttl" json:"ttl"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string      `yaml:"endpoints" json:"endpoints"`
	ClusterMode  bool          `yaml:"cluster_mode" json:"cluster_mode"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// InternalIndexingConfig contains configuration for index and aggregation maintenance.
type InternalIndexingConfig struct {
	// Mode is "sync" (maintained inside the write call) or "async" (drained from the change queue).
	Mode             string              `yaml:"mode" json:"mode"`
	BatchSize        int                 `yaml:"batch_size" json:"batch_size"`
	DrainRate        int                 `yaml:"drain_rate" json:"drain_rate"` // Events applied per second
	MaxRetries       int                 `yaml:"max_retries" json:"max_retries"`
	RetryBackoffBase time.Duration       `yaml:"retry_backoff_base" json:"retry_backoff_base"`
	RetryBackoffMax  time.Duration       `yaml:"retry_backoff_max" json:"retry_backoff_max"`
	QueueType        string              `yaml:"queue_type" json:"queue_type"`
	QueueBufferSize  int                 `yaml:"queue_buffer_size" json:"queue_buffer_size"`
	RedisConfig      InternalRedisConfig `yaml:"redis_config" json:"redis_config"`
	RedisQueueKey    string              `yaml:"redis_queue_key" json:"redis_queue_key"`
	KafkaConfig      InternalKafkaConfig `yaml:"kafka_config" json:"kafka_config"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// InternalQueryConfig contains query compilation and paging settings.
type InternalQueryConfig struct {
	UnifiedRangeJoin bool `yaml:"unified_range_join" json:"unified_range_join"`
	DefaultLimit     int  `yaml:"default_limit" json:"default_limit"`
	MaxLimit         int  `yaml:"max_limit" json:"max_limit"`
}

// InternalServerConfig contains HTTP transport settings.
type InternalServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
