// Provides a server type for starting and configuring a Streamwatch server.
package server

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/auth"
	"github.com/streamwatch/streamwatch/keyvalue"
	sauth "github.com/streamwatch/streamwatch/services/auth"
	"github.com/streamwatch/streamwatch/services/condition"
	"github.com/streamwatch/streamwatch/services/diagnostic"
	"github.com/streamwatch/streamwatch/services/httpd"
	"github.com/streamwatch/streamwatch/services/noauth"
	"github.com/streamwatch/streamwatch/services/stats"
	"github.com/streamwatch/streamwatch/services/storage"
	"github.com/streamwatch/streamwatch/services/streams"
	"github.com/streamwatch/streamwatch/services/trigger"
	"github.com/streamwatch/streamwatch/uuid"
)

const clusterIDFilename = "cluster.id"
const serverIDFilename = "server.id"

// BuildInfo represents the build details for the server code.
type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

type Diagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)
	Info(msg string, ctx ...keyvalue.T)
	Debug(msg string, ctx ...keyvalue.T)
}

// Server represents a container for the storage data and services.
// It is built using a Config and it manages the startup and shutdown of all
// services in the proper order.
type Server struct {
	dataDir  string
	hostname string

	config *Config

	err chan error

	AuthService      auth.Interface
	HTTPDService     *httpd.Service
	StorageService   *storage.Service
	StreamsService   *streams.Service
	TriggerService   *trigger.Service
	ConditionService *condition.Service
	StatsService     *stats.Service

	// List of services in startup order
	Services []Service
	// Map of service name to index in Services list
	ServicesByName map[string]int

	BuildInfo BuildInfo
	ClusterID uuid.UUID
	ServerID  uuid.UUID

	// Profiling
	CPUProfile string
	MemProfile string

	DiagService *diagnostic.Service
	Diag        Diagnostic
}

// New returns a new instance of Server built from a config.
func New(c *Config, buildInfo BuildInfo, diagService *diagnostic.Service) (*Server, error) {
	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s. To generate a valid configuration file run `streamwatchd config > streamwatch.generated.conf`.", err)
	}
	s := &Server{
		config:         c,
		BuildInfo:      buildInfo,
		dataDir:        c.DataDir,
		hostname:       c.Hostname,
		err:            make(chan error),
		ServicesByName: make(map[string]int),
		DiagService:    diagService,
		Diag:           diagService.NewServerHandler(),
	}
	s.Diag.Info("streamwatch hostname", keyvalue.KV("hostname", s.hostname))

	// Setup IDs
	if err := s.setupIDs(); err != nil {
		return nil, err
	}
	s.Diag.Info("streamwatch server ids",
		keyvalue.KV("cluster_id", s.ClusterID.String()),
		keyvalue.KV("server_id", s.ServerID.String()),
	)

	// Append Streamwatch services.
	s.initHTTPDService()
	s.appendStorageService()
	s.appendAuthService()
	s.appendStreamsService()
	s.appendTriggerService()
	s.appendConditionService()

	// Append the stats service after the others so all their collectors exist.
	s.appendStatsService()

	// Append HTTPD Service last so that the API is not listening till everything else succeeded.
	s.appendHTTPDService()

	return s, nil
}

func (s *Server) AppendService(name string, srv Service) {
	if _, ok := s.ServicesByName[name]; ok {
		// Should be unreachable code
		panic("cannot append service twice")
	}
	i := len(s.Services)
	s.Services = append(s.Services, srv)
	s.ServicesByName[name] = i
}

func (s *Server) initHTTPDService() {
	d := s.DiagService.NewHTTPDHandler()
	srv := httpd.NewService(s.config.HTTP, s.hostname, d)

	srv.Handler.Version = s.BuildInfo.Version
	srv.Handler.DiagService = s.DiagService

	s.HTTPDService = srv
}

func (s *Server) appendHTTPDService() {
	s.AppendService("httpd", s.HTTPDService)
}

func (s *Server) appendStorageService() {
	d := s.DiagService.NewStorageHandler()
	srv := storage.NewService(s.config.Storage, d)

	srv.HTTPDService = s.HTTPDService

	s.StorageService = srv
	s.AppendService("storage", srv)
}

func (s *Server) appendAuthService() {
	if s.config.Auth.Enabled {
		d := s.DiagService.NewAuthHandler()
		srv := sauth.NewService(s.config.Auth, d)

		srv.StorageService = s.StorageService
		srv.HTTPDService = s.HTTPDService

		s.AuthService = srv
		s.HTTPDService.Handler.AuthService = srv
		s.AppendService("auth", srv)
		return
	}
	d := s.DiagService.NewNoAuthHandler()
	srv := noauth.NewService(d)

	s.AuthService = srv
	s.HTTPDService.Handler.AuthService = srv
	s.AppendService("auth", srv)
}

func (s *Server) appendStreamsService() {
	d := s.DiagService.NewStreamsHandler()
	srv := streams.NewService(s.config.Streams, d)

	srv.StorageService = s.StorageService
	srv.HTTPDService = s.HTTPDService

	s.StreamsService = srv
	s.AppendService("streams", srv)
}

func (s *Server) appendTriggerService() {
	d := s.DiagService.NewTriggerHandler()
	srv := trigger.NewService(s.config.Triggers, d)

	srv.StorageService = s.StorageService
	srv.HTTPDService = s.HTTPDService

	s.TriggerService = srv
	s.AppendService("trigger", srv)
}

func (s *Server) appendConditionService() {
	d := s.DiagService.NewConditionHandler()
	srv := condition.NewService(s.config.Conditions, condition.DefaultRegistry(), d)

	srv.StorageService = s.StorageService
	srv.HTTPDService = s.HTTPDService
	srv.StreamService = s.StreamsService
	srv.TriggerService = s.TriggerService

	// Streams cascade deletes through the condition service and
	// triggers validate their condition against it.
	s.StreamsService.ConditionService = srv
	s.TriggerService.ConditionService = srv

	s.ConditionService = srv
	s.AppendService("condition", srv)
}

func (s *Server) appendStatsService() {
	c := s.config.Stats
	if c.Enabled {
		d := s.DiagService.NewStatsHandler()
		srv := stats.NewService(c, d)

		srv.HTTPDService = s.HTTPDService
		srv.MustRegister(s.HTTPDService.Handler.PrometheusCollectors()...)
		srv.MustRegister(s.ConditionService.PrometheusCollectors()...)

		s.StatsService = srv
		s.AppendService("stats", srv)
	}
}

// Err returns an error channel that multiplexes all out of band errors received from all services.
func (s *Server) Err() <-chan error { return s.err }

// Open opens all the services.
func (s *Server) Open() error {

	// Start profiling, if set.
	if err := s.startProfile(s.CPUProfile, s.MemProfile); err != nil {
		return err
	}

	if err := s.startServices(); err != nil {
		s.Close()
		return err
	}

	go s.watchServices()

	return nil
}

func (s *Server) startServices() error {
	for _, service := range s.Services {
		s.Diag.Debug("opening service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		if err := service.Open(); err != nil {
			return fmt.Errorf("open service %T: %s", service, err)
		}
		s.Diag.Debug("opened service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

// Watch if something dies
func (s *Server) watchServices() {
	var err error
	select {
	case err = <-s.HTTPDService.Err():
	}
	s.err <- err
}

// Close shuts down the storage and all services.
func (s *Server) Close() error {
	s.stopProfile()

	// Close the HTTPD service first so no new requests arrive while the
	// rest shuts down.
	if err := s.HTTPDService.Close(); err != nil {
		s.Diag.Error("error closing httpd service", err)
	}

	for i := len(s.Services) - 1; i >= 0; i-- {
		service := s.Services[i]
		s.Diag.Debug("closing service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
		err := service.Close()
		if err != nil {
			s.Diag.Error("error closing service", err, keyvalue.KV("service", fmt.Sprintf("%T", service)))
		}
		s.Diag.Debug("closed service", keyvalue.KV("service", fmt.Sprintf("%T", service)))
	}
	return nil
}

func (s *Server) setupIDs() error {
	// Create the data dir if not exists
	if f, err := os.Stat(s.dataDir); err != nil {
		if os.IsNotExist(err) {
			if err := os.Mkdir(s.dataDir, 0755); err != nil {
				return errors.Wrapf(err, "data_dir %q does not exist, failed to create it", s.dataDir)
			}
		} else {
			return errors.Wrapf(err, "failed to stat data dir %q", s.dataDir)
		}
	} else if !f.IsDir() {
		return fmt.Errorf("path data_dir %s exists and is not a directory", s.dataDir)
	}
	clusterIDPath := filepath.Join(s.dataDir, clusterIDFilename)
	clusterID, err := s.readID(clusterIDPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if clusterID == uuid.Nil {
		clusterID = uuid.New()
		if err := s.writeID(clusterIDPath, clusterID); err != nil {
			return errors.Wrap(err, "failed to save cluster ID")
		}
	}
	s.ClusterID = clusterID

	serverIDPath := filepath.Join(s.dataDir, serverIDFilename)
	serverID, err := s.readID(serverIDPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if serverID == uuid.Nil {
		serverID = uuid.New()
		if err := s.writeID(serverIDPath, serverID); err != nil {
			return errors.Wrap(err, "failed to save server ID")
		}
	}
	s.ServerID = serverID

	return nil
}

func (s *Server) readID(file string) (uuid.UUID, error) {
	f, err := os.Open(file)
	if err != nil {
		return uuid.Nil, err
	}
	defer f.Close()
	b, err := ioutil.ReadAll(f)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.ParseBytes(b)
}

func (s *Server) writeID(file string, id uuid.UUID) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(id.String()))
	if err != nil {
		return err
	}
	return nil
}

// Service represents a service attached to the server.
type Service interface {
	Open() error
	Close() error
}

// prof stores the file locations of active profiles.
var prof struct {
	cpu *os.File
	mem *os.File
}

// StartProfile initializes the cpu and memory profile, if specified.
func (s *Server) startProfile(cpuprofile, memprofile string) error {
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return fmt.Errorf("cpuprofile: %v", err)
		}
		s.Diag.Info("writing CPU profile", keyvalue.KV("path", cpuprofile))
		prof.cpu = f
		if err := pprof.StartCPUProfile(prof.cpu); err != nil {
			return fmt.Errorf("start cpu profile: %v", err)
		}
	}

	if memprofile != "" {
		f, err := os.Create(memprofile)
		if err != nil {
			return fmt.Errorf("memprofile: %v", err)
		}
		s.Diag.Info("writing mem profile", keyvalue.KV("path", memprofile))
		prof.mem = f
		runtime.MemProfileRate = 4096
	}
	return nil
}

// StopProfile closes the cpu and memory profiles if they are running.
func (s *Server) stopProfile() {
	if prof.cpu != nil {
		pprof.StopCPUProfile()
		prof.cpu.Close()
		s.Diag.Info("CPU profile stopped")
	}
	if prof.mem != nil {
		if err := pprof.Lookup("heap").WriteTo(prof.mem, 0); err != nil {
			s.Diag.Error("failed to write mem profile", err)
		}
		prof.mem.Close()
		s.Diag.Info("mem profile stopped")
	}
}
