package streams

import (
	"encoding/json"
	"net/http"
	"path"
	"strconv"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/httprouter"
	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/auth"
	client "github.com/streamwatch/streamwatch/client/v1"
	"github.com/streamwatch/streamwatch/keyvalue"
	"github.com/streamwatch/streamwatch/services/httpd"
	"github.com/streamwatch/streamwatch/services/storage"
	"github.com/streamwatch/streamwatch/uuid"
)

const (
	streamsPath         = "/streams"
	streamsPathAnchored = "/streams/:streamid"

	// streamsNamespace is the storage namespace that holds stream data.
	streamsNamespace = "stream_store"
)

type Diagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)

	CreatedStream(id string)
	UpdatedStream(id string)
	DeletedStream(id string)
}

// Service manages the set of logical streams that alert conditions bind to.
type Service struct {
	config Config

	StorageService interface {
		Store(namespace string) storage.Interface
		Register(name string, store storage.StoreActioner)
	}
	HTTPDService interface {
		AddRoutes([]httpd.Route) error
		DelRoutes([]httpd.Route)
	}
	// ConditionService removes every condition bound to a stream when
	// the stream is deleted. Wired by the server, may be nil in tests.
	ConditionService interface {
		DeleteStreamConditions(streamID string) error
	}

	streams StreamDAO
	routes  []httpd.Route

	clk  clock.Clock
	diag Diagnostic
}

type Option func(*Service)

// WithClock overrides the wall clock used for creation timestamps.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clk = clk
	}
}

func NewService(c Config, d Diagnostic, opts ...Option) *Service {
	s := &Service{
		config: c,
		clk:    clock.New(),
		diag:   d,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Open() error {
	store := s.StorageService.Store(streamsNamespace)
	streams, err := newStreamKV(store)
	if err != nil {
		return err
	}
	s.streams = streams
	s.StorageService.Register(streamsNamespace, streams)

	s.routes = []httpd.Route{
		{
			Method:      "GET",
			Pattern:     streamsPathAnchored,
			HandlerFunc: s.handleStream,
		},
		{
			Method:      "PUT",
			Pattern:     streamsPathAnchored,
			HandlerFunc: s.handleUpdateStream,
		},
		{
			Method:      "DELETE",
			Pattern:     streamsPathAnchored,
			HandlerFunc: s.handleDeleteStream,
		},
		{
			Method:      "GET",
			Pattern:     streamsPath,
			HandlerFunc: s.handleListStreams,
		},
		{
			Method:      "POST",
			Pattern:     streamsPath,
			HandlerFunc: s.handleCreateStream,
		},
	}
	return s.HTTPDService.AddRoutes(s.routes)
}

func (s *Service) Close() error {
	if s.HTTPDService != nil {
		s.HTTPDService.DelRoutes(s.routes)
	}
	return nil
}

// Create registers a new stream and assigns its id and creation time.
func (s *Service) Create(title, description, creatorUserID string) (Stream, error) {
	stream := Stream{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   description,
		CreatedAt:     s.clk.Now().UTC(),
		CreatorUserID: creatorUserID,
	}
	if err := stream.Validate(); err != nil {
		return Stream{}, err
	}
	if err := s.streams.Create(stream); err != nil {
		return Stream{}, err
	}
	s.diag.CreatedStream(stream.ID)
	return stream, nil
}

func (s *Service) Get(id string) (Stream, error) {
	return s.streams.Get(id)
}

// Exists reports whether the stream is known.
// It satisfies the stream lookup needed to validate condition operations.
func (s *Service) Exists(id string) (bool, error) {
	return s.streams.Exists(id)
}

func (s *Service) List(pattern string, offset, limit int) ([]Stream, error) {
	return s.streams.List(pattern, offset, limit)
}

// Update replaces the mutable fields of an existing stream.
// Identity fields are preserved.
func (s *Service) Update(id, title, description string, disabled bool) (Stream, error) {
	stream, err := s.streams.Get(id)
	if err != nil {
		return Stream{}, err
	}
	stream.Title = title
	stream.Description = description
	stream.Disabled = disabled
	if err := stream.Validate(); err != nil {
		return Stream{}, err
	}
	if err := s.streams.Replace(stream); err != nil {
		return Stream{}, err
	}
	s.diag.UpdatedStream(id)
	return stream, nil
}

// Delete removes a stream and cascades to its alert conditions.
// Deleting a stream that does not exist returns ErrNoStreamExists.
func (s *Service) Delete(id string) error {
	if _, err := s.streams.Get(id); err != nil {
		return err
	}
	if s.ConditionService != nil {
		if err := s.ConditionService.DeleteStreamConditions(id); err != nil {
			return errors.Wrapf(err, "failed to delete alert conditions of stream %s", id)
		}
	}
	if err := s.streams.Delete(id); err != nil && err != ErrNoStreamExists {
		return err
	}
	s.diag.DeletedStream(id)
	return nil
}

func (s *Service) streamLink(id string) client.Link {
	return client.Link{Relation: client.Self, Href: path.Join(httpd.BasePath, streamsPath, id)}
}

func (s *Service) convert(stream Stream) client.Stream {
	return client.Stream{
		Link:          s.streamLink(stream.ID),
		ID:            stream.ID,
		Title:         stream.Title,
		Description:   stream.Description,
		CreatedAt:     stream.CreatedAt,
		CreatorUserID: stream.CreatorUserID,
		Disabled:      stream.Disabled,
	}
}

func (s *Service) handleCreateStream(w http.ResponseWriter, r *http.Request, user auth.User) {
	var opts client.CreateStreamOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	if opts.Title == "" {
		httpd.HttpError(w, "stream title must not be empty", true, http.StatusBadRequest)
		return
	}

	stream, err := s.Create(opts.Title, opts.Description, user.Name())
	if err != nil {
		s.diag.Error("failed to create stream", err, keyvalue.KV("title", opts.Title))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", s.streamLink(stream.ID).Href)
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(httpd.MarshalJSON(s.convert(stream), true))
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("streamid")
	stream, err := s.streams.Get(id)
	if err == ErrNoStreamExists {
		httpd.HttpError(w, "unknown stream: "+id, true, http.StatusNotFound)
		return
	} else if err != nil {
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(httpd.MarshalJSON(s.convert(stream), true))
}

func (s *Service) handleListStreams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pattern := q.Get("pattern")

	offset := 0
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			httpd.HttpError(w, "invalid offset parameter", true, http.StatusBadRequest)
			return
		}
		offset = n
	}
	limit := s.config.ListLimit
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			httpd.HttpError(w, "invalid limit parameter", true, http.StatusBadRequest)
			return
		}
		limit = n
	}

	streams, err := s.streams.List(pattern, offset, limit)
	if err != nil {
		s.diag.Error("failed to list streams", err)
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}

	res := client.Streams{Streams: make([]client.Stream, len(streams))}
	for i, stream := range streams {
		res.Streams[i] = s.convert(stream)
	}
	_, _ = w.Write(httpd.MarshalJSON(res, true))
}

func (s *Service) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("streamid")
	existing, err := s.streams.Get(id)
	if err == ErrNoStreamExists {
		httpd.HttpError(w, "unknown stream: "+id, true, http.StatusNotFound)
		return
	} else if err != nil {
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}

	// Decode over the existing values so omitted fields keep their value.
	opts := client.UpdateStreamOptions{
		Title:       existing.Title,
		Description: existing.Description,
		Disabled:    existing.Disabled,
	}
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}
	if opts.Title == "" {
		httpd.HttpError(w, "stream title must not be empty", true, http.StatusBadRequest)
		return
	}

	stream, err := s.Update(id, opts.Title, opts.Description, opts.Disabled)
	if err == ErrNoStreamExists {
		httpd.HttpError(w, "unknown stream: "+id, true, http.StatusNotFound)
		return
	} else if err != nil {
		s.diag.Error("failed to update stream", err, keyvalue.KV("stream", id))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(httpd.MarshalJSON(s.convert(stream), true))
}

func (s *Service) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("streamid")
	err := s.Delete(id)
	if err == ErrNoStreamExists {
		httpd.HttpError(w, "unknown stream: "+id, true, http.StatusNotFound)
		return
	} else if err != nil {
		s.diag.Error("failed to delete stream", err, keyvalue.KV("stream", id))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
