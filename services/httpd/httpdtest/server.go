package httpdtest

import (
	"net/http/httptest"
	"os"

	"github.com/streamwatch/streamwatch/services/diagnostic"
	"github.com/streamwatch/streamwatch/services/httpd"
)

// Server is an httptest server wrapping a real API handler, for tests
// that register routes the way services do against the full server.
type Server struct {
	Handler *httpd.Handler
	Server  *httptest.Server
}

func NewServer(verbose bool) *Server {
	ds := diagnostic.NewService(diagnostic.NewConfig(), os.Stdout, os.Stderr)
	s := &Server{
		Handler: httpd.NewHandler(
			false,
			false,
			verbose,
			false,
			ds.NewHTTPDHandler(),
			"",
		),
	}

	s.Server = httptest.NewServer(s.Handler)
	return s
}

func (s *Server) Close() error {
	s.Server.Close()
	return nil
}

func (s *Server) AddRoutes(routes []httpd.Route) error {
	return s.Handler.AddRoutes(routes)
}

func (s *Server) DelRoutes(routes []httpd.Route) {
	s.Handler.DelRoutes(routes)
}
