package kvstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/rzpsarthak13/dynamoplus/internal/core"
)

// DriverFactory is the Strategy interface for creating storage driver implementations.
// Each backend (DynamoDB, bolt, memory) implements this interface to provide
// its own factory method.
type DriverFactory interface {
	// Create creates a new storage driver based on the provided configuration.
	Create(config DriverConfig) (core.StorageDriver, error)

	// Type returns the type identifier for this factory (e.g., "dynamodb", "bolt").
	Type() string

	// Validate validates the configuration specific to this driver type.
	Validate(config DriverConfig) error
}

// DriverConfig represents the configuration needed to create a storage driver.
type DriverConfig struct {
	Type        string
	DialTimeout time.Duration

	// DynamoDB-specific fields
	Region          string
	TableName       string
	Endpoint        string // Optional, for LocalStack
	AccessKeyID     string // Optional, can use IAM role instead
	SecretAccessKey string // Optional, can use IAM role instead
	CreateTable     bool

	// Bolt-specific fields
	Path     string
	Compress bool

	// RateLimit caps driver calls per second when greater than zero.
	RateLimit int
	Burst     int
}

var (
	// factoryRegistry stores all registered driver factories.
	factoryRegistry = make(map[string]DriverFactory)

	// registryMutex protects the registries from concurrent access.
	registryMutex sync.RWMutex
)

// RegisterFactory registers a driver factory.
// This is called automatically by each implementation's init() function.
func RegisterFactory(factory DriverFactory) {
	if factory == nil {
		panic("factory cannot be nil")
	}
	if factory.Type() == "" {
		panic("factory type cannot be empty")
	}

	registryMutex.Lock()
	defer registryMutex.Unlock()

	if _, exists := factoryRegistry[factory.Type()]; exists {
		panic(fmt.Sprintf("factory for type %q is already registered", factory.Type()))
	}

	factoryRegistry[factory.Type()] = factory
}

// Create creates a storage driver using the factory registered for config.Type.
// The driver is wrapped in a rate limiter when config.RateLimit is set.
func Create(config DriverConfig) (core.StorageDriver, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("storage type is required")
	}

	registryMutex.RLock()
	factory, exists := factoryRegistry[config.Type]
	registryMutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}

	if err := factory.Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", config.Type, err)
	}

	driver, err := factory.Create(config)
	if err != nil {
		return nil, err
	}

	if config.RateLimit > 0 {
		return NewRateLimitedDriver(driver, config.RateLimit, config.Burst), nil
	}
	return driver, nil
}

// GetRegisteredTypes returns a list of all registered driver types.
func GetRegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	types := make([]string, 0, len(factoryRegistry))
	for t := range factoryRegistry {
		types = append(types, t)
	}
	return types
}

// IsTypeRegistered checks if a driver type is registered.
func IsTypeRegistered(storeType string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	_, exists := factoryRegistry[storeType]
	return exists
}
