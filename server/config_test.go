package server_test

import (
	"os"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/streamwatch/streamwatch/server"
)

// Ensure the configuration can be parsed.
func TestConfig_Parse(t *testing.T) {
	// Parse configuration.
	var c server.Config
	if _, err := toml.Decode(`
[http]
bind-address = ":9999"

[storage]
boltdb = "/tmp/streamwatch.db"

[conditions]
storage-max-retries = 5

[logging]
level = "DEBUG"
`, &c); err != nil {
		t.Fatal(err)
	}

	// Validate configuration.
	if c.HTTP.BindAddress != ":9999" {
		t.Fatalf("unexpected http bind-address: %s", c.HTTP.BindAddress)
	} else if c.Storage.BoltDBPath != "/tmp/streamwatch.db" {
		t.Fatalf("unexpected storage boltdb path: %s", c.Storage.BoltDBPath)
	} else if c.Conditions.StorageMaxRetries != 5 {
		t.Fatalf("unexpected conditions storage-max-retries: %d", c.Conditions.StorageMaxRetries)
	} else if c.Logging.Level != "DEBUG" {
		t.Fatalf("unexpected logging level: %s", c.Logging.Level)
	}
}

// Ensure the configuration can be overridden from the environment.
func TestConfig_Parse_EnvOverride(t *testing.T) {
	// Parse configuration.
	var c server.Config
	if _, err := toml.Decode(`
hostname = "localhost"

[storage]
boltdb = "/tmp/streamwatch.db"

[triggers]
list-limit = 10
`, &c); err != nil {
		t.Fatal(err)
	}

	if err := os.Setenv("STREAMWATCH_STORAGE_BOLTDB", "/var/lib/streamwatch/streamwatch.db"); err != nil {
		t.Fatalf("failed to set env var: %v", err)
	}
	defer os.Unsetenv("STREAMWATCH_STORAGE_BOLTDB")

	if err := os.Setenv("STREAMWATCH_TRIGGERS_LIST_LIMIT", "25"); err != nil {
		t.Fatalf("failed to set env var: %v", err)
	}
	defer os.Unsetenv("STREAMWATCH_TRIGGERS_LIST_LIMIT")

	if err := os.Setenv("STREAMWATCH_HOSTNAME", "streamwatch01"); err != nil {
		t.Fatalf("failed to set env var: %v", err)
	}
	defer os.Unsetenv("STREAMWATCH_HOSTNAME")

	if err := os.Setenv("STREAMWATCH_CONDITIONS_STORAGE_RETRY_INTERVAL", "250ms"); err != nil {
		t.Fatalf("failed to set env var: %v", err)
	}
	defer os.Unsetenv("STREAMWATCH_CONDITIONS_STORAGE_RETRY_INTERVAL")

	if err := c.ApplyEnvOverrides(); err != nil {
		t.Fatalf("failed to apply env overrides: %v", err)
	}

	// Validate configuration.
	if c.Storage.BoltDBPath != "/var/lib/streamwatch/streamwatch.db" {
		t.Fatalf("unexpected storage boltdb path: %s", c.Storage.BoltDBPath)
	} else if c.Triggers.ListLimit != 25 {
		t.Fatalf("unexpected triggers list-limit: %d", c.Triggers.ListLimit)
	} else if c.Hostname != "streamwatch01" {
		t.Fatalf("unexpected hostname: %s", c.Hostname)
	} else if got, exp := c.Conditions.StorageRetryInterval.String(), "250ms"; got != exp {
		t.Fatalf("unexpected conditions storage-retry-interval: got %s exp %s", got, exp)
	}
}

func TestConfig_Validate(t *testing.T) {
	c := server.NewConfig()
	c.DataDir = "/tmp/streamwatch"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	c.Hostname = ""
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for empty hostname")
	}
	c.Hostname = "localhost"

	c.DataDir = ""
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for empty data dir")
	}
	c.DataDir = "/tmp/streamwatch"

	c.HTTP.BindAddress = "no-port"
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for invalid bind address")
	}
	c.HTTP.BindAddress = ":9192"

	c.Streams.ListLimit = 0
	if err := c.Validate(); err == nil {
		t.Error("expected validation error for zero streams list-limit")
	}
}
