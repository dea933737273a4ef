// The stats service exposes the internal counters of the other
// services over a Prometheus scrape endpoint at /metrics.
package stats

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streamwatch/streamwatch/services/httpd"
)

type Diagnostic interface {
	Error(msg string, err error)
}

type Service struct {
	registry *prometheus.Registry

	HTTPDService interface {
		AddRoutes([]httpd.Route) error
		DelRoutes([]httpd.Route)
	}

	mu     sync.Mutex
	routes []httpd.Route

	diag Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		registry: prometheus.NewRegistry(),
		diag:     d,
	}
}

// MustRegister registers the collectors with the scrape registry.
// Panics on registration conflicts, these are programming errors.
func (s *Service) MustRegister(cs ...prometheus.Collector) {
	s.registry.MustRegister(cs...)
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{diag: s.diag},
		ErrorHandling: promhttp.ContinueOnError,
	})
	s.routes = []httpd.Route{
		{
			Method:      "GET",
			Pattern:     "/metrics",
			HandlerFunc: h.ServeHTTP,
			NoJSON:      true,
		},
	}
	return s.HTTPDService.AddRoutes(s.routes)
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HTTPDService != nil {
		s.HTTPDService.DelRoutes(s.routes)
	}
	return nil
}

// promLogger adapts the diagnostic handler to the promhttp logger.
type promLogger struct {
	diag Diagnostic
}

func (l promLogger) Println(v ...interface{}) {
	l.diag.Error("metrics scrape failed", fmt.Errorf("%s", strings.TrimSpace(fmt.Sprintln(v...))))
}
