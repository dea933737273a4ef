package condition

import (
	"time"

	"github.com/influxdata/influxdb/toml"
	"github.com/pkg/errors"
)

const (
	// DefaultStorageMaxRetries is how often a failed storage operation
	// is retried before the operation is reported unavailable.
	DefaultStorageMaxRetries = 3

	// DefaultStorageRetryInterval is the initial backoff between retries.
	DefaultStorageRetryInterval = toml.Duration(100 * time.Millisecond)
)

type Config struct {
	StorageMaxRetries    int           `toml:"storage-max-retries"`
	StorageRetryInterval toml.Duration `toml:"storage-retry-interval"`
}

func NewConfig() Config {
	return Config{
		StorageMaxRetries:    DefaultStorageMaxRetries,
		StorageRetryInterval: DefaultStorageRetryInterval,
	}
}

func (c Config) Validate() error {
	if c.StorageMaxRetries < 0 {
		return errors.New("conditions: storage-max-retries must not be negative")
	}
	if c.StorageRetryInterval <= 0 {
		return errors.New("conditions: storage-retry-interval must be positive")
	}
	return nil
}
