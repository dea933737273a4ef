package storage

import (
	"os"
	"path"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/services/httpd"
	bolt "go.etcd.io/bbolt"
)

const (
	versionsNamespace = "versions"

	// Opening the database file retries on transient failures,
	// giving up after this much time has elapsed.
	openMaxElapsedTime = 15 * time.Second
)

type Diagnostic interface {
	Error(msg string, err error)
	OpenedDB(path string, size int64)
}

type Service struct {
	dbpath string

	boltdb *bolt.DB
	stores map[string]Interface
	mu     sync.Mutex

	versions  Versions
	registrar *StoreActionerRegistrar

	apiServer *APIServer

	HTTPDService interface {
		AddRoutes([]httpd.Route) error
		DelRoutes([]httpd.Route)
	}

	diag Diagnostic
}

func NewService(conf Config, d Diagnostic) *Service {
	return &Service{
		dbpath:    conf.BoltDBPath,
		diag:      d,
		stores:    make(map[string]Interface),
		registrar: NewStorageRegistrar(),
	}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.MkdirAll(path.Dir(s.dbpath), 0755)
	if err != nil {
		return errors.Wrapf(err, "mkdir dirs %q", s.dbpath)
	}

	// A bolt file locked by a shutting down process is a transient
	// condition, retry before giving up.
	var db *bolt.DB
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = openMaxElapsedTime
	err = backoff.Retry(func() error {
		var err error
		db, err = bolt.Open(s.dbpath, 0600, &bolt.Options{Timeout: time.Second})
		return err
	}, b)
	if err != nil {
		return errors.Wrapf(err, "open boltdb @ %q", s.dbpath)
	}
	s.boltdb = db

	if info, err := os.Stat(s.dbpath); err == nil {
		s.diag.OpenedDB(s.dbpath, info.Size())
	}

	s.versions = NewVersions(s.store(versionsNamespace))

	if s.HTTPDService != nil {
		s.apiServer = &APIServer{
			DB:           s.boltdb,
			Registrar:    s.registrar,
			HTTPDService: s.HTTPDService,
			diag:         s.diag,
		}
		if err := s.apiServer.Open(); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiServer != nil {
		if err := s.apiServer.Close(); err != nil {
			return err
		}
		s.apiServer = nil
	}
	if s.boltdb != nil {
		err := s.boltdb.Close()
		s.boltdb = nil
		return err
	}
	return nil
}

// Return a namespaced store.
// Calling Store with the same namespace returns the same Store.
func (s *Service) Store(name string) Interface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(name)
}

func (s *Service) store(name string) Interface {
	if store, ok := s.stores[name]; ok {
		return store
	} else {
		store = NewBolt(s.boltdb, name)
		s.stores[name] = store
		return store
	}
}

func (s *Service) Versions() Versions {
	return s.versions
}

// Register a store with the registrar so actions can be
// performed on it via the API.
func (s *Service) Register(name string, store StoreActioner) {
	s.registrar.Register(name, store)
}
