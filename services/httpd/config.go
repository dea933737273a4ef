package httpd

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/influxdata/influxdb/toml"
)

const (
	// DefaultShutdownTimeout is the default time to wait for in-flight
	// requests when stopping the service.
	DefaultShutdownTimeout = toml.Duration(time.Second * 10)
)

type Config struct {
	BindAddress      string        `toml:"bind-address"`
	AuthEnabled      bool          `toml:"auth-enabled"`
	LogEnabled       bool          `toml:"log-enabled"`
	PprofEnabled     bool          `toml:"pprof-enabled"`
	HTTPSEnabled     bool          `toml:"https-enabled"`
	HTTPSCertificate string        `toml:"https-certificate"`
	HTTPSPrivateKey  string        `toml:"https-private-key"`
	ShutdownTimeout  toml.Duration `toml:"shutdown-timeout"`
	SharedSecret     string        `toml:"shared-secret"`
	GZIP             bool          `toml:"gzip"`
}

func NewConfig() Config {
	return Config{
		BindAddress:      ":9192",
		LogEnabled:       true,
		HTTPSCertificate: "/etc/ssl/streamwatch.pem",
		ShutdownTimeout:  DefaultShutdownTimeout,
		GZIP:             true,
	}
}

func (c Config) Validate() error {
	_, port, err := net.SplitHostPort(c.BindAddress)
	if err != nil {
		return fmt.Errorf("invalid bind-address %s: %v", c.BindAddress, err)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return fmt.Errorf("invalid bind-address port %s: %v", port, err)
	}
	if c.HTTPSEnabled && c.HTTPSCertificate == "" {
		return fmt.Errorf("https-certificate must be set when https-enabled is true")
	}
	return nil
}

// Port returns the port the server will bind to.
func (c Config) Port() (int, error) {
	_, portStr, err := net.SplitHostPort(c.BindAddress)
	if err != nil {
		return -1, fmt.Errorf("invalid bind-address %s: %v", c.BindAddress, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return -1, fmt.Errorf("invalid bind-address port %s: %v", portStr, err)
	}
	return port, nil
}
