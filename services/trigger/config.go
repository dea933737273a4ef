package trigger

import "github.com/pkg/errors"

type Config struct {
	// ListLimit is the page size used when a history request does not specify one.
	ListLimit int `toml:"list-limit"`
}

func NewConfig() Config {
	return Config{
		ListLimit: 100,
	}
}

func (c Config) Validate() error {
	if c.ListLimit <= 0 {
		return errors.New("triggers: list-limit must be positive")
	}
	return nil
}
