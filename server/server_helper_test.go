// This package is a set of convenience helpers and structs to make integration testing easier
package server_test

import (
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/streamwatch/streamwatch/client/v1"
	"github.com/streamwatch/streamwatch/server"
	"github.com/streamwatch/streamwatch/services/diagnostic"
)

// Server represents a test wrapper for server.Server.
type Server struct {
	*server.Server
	Config    *server.Config
	buildInfo server.BuildInfo
	ds        *diagnostic.Service
}

// NewServer returns a new instance of Server.
func NewServer(c *server.Config) *Server {
	configureLogging(c)
	buildInfo := server.BuildInfo{
		Version: "testServer",
		Commit:  "testCommit",
		Branch:  "testBranch",
	}
	ds := diagnostic.NewService(c.Logging, os.Stdout, os.Stderr)
	if err := ds.Open(); err != nil {
		panic(err)
	}
	srv, err := server.New(c, buildInfo, ds)
	if err != nil {
		panic(err)
	}
	s := Server{
		Server:    srv,
		Config:    c,
		buildInfo: buildInfo,
		ds:        ds,
	}
	return &s
}

// OpenServer opens a test server.
func OpenDefaultServer(t *testing.T) (*Server, *client.Client) {
	c := NewConfig(t)
	s := OpenServer(c)
	cli := Client(s)
	return s, cli
}

// OpenServer opens a test server.
func OpenServer(c *server.Config) *Server {
	s := NewServer(c)
	if err := s.Open(); err != nil {
		panic(err.Error())
	}
	return s
}

// Restart stops the server and starts a new one using the same config and data directories.
func (s *Server) Restart() {
	if err := s.Server.Close(); err != nil {
		panic(err.Error())
	}
	srv, err := server.New(s.Config, s.buildInfo, s.ds)
	if err != nil {
		panic(err.Error())
	}
	s.Server = srv
	if err := s.Open(); err != nil {
		panic(err.Error())
	}
}

// Open opens the server. If the server fails to start, fail the test.
func (s *Server) Open() error {
	err := s.Server.Open()
	if err != nil {
		return err
	}
	u, err := url.Parse(s.URL())
	if err != nil {
		return err
	}
	s.Config.HTTP.BindAddress = u.Host
	return nil
}

// Close shuts down the server and removes all temporary paths.
func (s *Server) Close() {
	s.Server.Close()
	os.RemoveAll(s.Config.Storage.BoltDBPath)
	os.RemoveAll(s.Config.DataDir)
	s.ds.Close()
}

// URL returns the base URL for the httpd endpoint.
func (s *Server) URL() string {
	return s.HTTPDService.URL()
}

// Client returns a client that will hit the test server.
func Client(s *Server) *client.Client {
	cli, err := client.New(client.Config{
		URL: s.URL(),
	})
	if err != nil {
		panic(err)
	}
	return cli
}

// NewConfig returns the default config with temporary paths.
func NewConfig(t *testing.T) *server.Config {
	c := server.NewConfig()
	c.Hostname = "localhost"
	c.DataDir = MustTempDir(t)
	c.HTTP.BindAddress = "127.0.0.1:0"
	c.Storage.BoltDBPath = filepath.Join(MustTempDir(t), "streamwatch.db")
	return c
}

func MustTempDir(t *testing.T) string {
	d, err := ioutil.TempDir("", "streamwatchd-")
	if err != nil {
		panic(err)
	}
	if t != nil {
		t.Cleanup(func() { os.RemoveAll(d) })
	}
	return d
}

func configureLogging(c *server.Config) {
	if testing.Verbose() {
		c.Logging.Level = "DEBUG"
	} else {
		c.Logging.Level = "ERROR"
	}
}
