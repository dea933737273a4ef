package trigger

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/httprouter"
	client "github.com/streamwatch/streamwatch/client/v1"
	"github.com/streamwatch/streamwatch/keyvalue"
	"github.com/streamwatch/streamwatch/services/httpd"
	"github.com/streamwatch/streamwatch/services/storage"
	"github.com/streamwatch/streamwatch/uuid"
)

const (
	triggersPath = "/streams/:streamid/alerts/conditions/:conditionid/triggers"

	// triggerNamespace is the storage namespace that holds trigger data.
	triggerNamespace = "trigger_store"
)

type Diagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)

	RecordedTrigger(id, conditionID string)
	DeletedConditionTriggers(conditionID string)
}

// Service keeps the durable record of condition firings.
// The evaluation engine reports firings through the HTTP API; the
// condition manager reads the last trigger time for grace period checks.
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
	// ConditionService reports whether a condition exists so firings
	// for unknown conditions are rejected. Wired by the server, may be
	// nil in tests.
	ConditionService interface {
		ConditionExists(streamID, conditionID string) (bool, error)
	}

	triggers TriggerDAO
	routes   []httpd.Route

	clk  clock.Clock
	diag Diagnostic
}

type Option func(*Service)

// WithClock overrides the wall clock used for trigger timestamps.
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
	store := s.StorageService.Store(triggerNamespace)
	triggers, err := newTriggerKV(store)
	if err != nil {
		return err
	}
	s.triggers = triggers
	s.StorageService.Register(triggerNamespace, triggers)

	s.routes = []httpd.Route{
		{
			Method:      "POST",
			Pattern:     triggersPath,
			HandlerFunc: s.handleRecordTrigger,
		},
		{
			Method:      "GET",
			Pattern:     triggersPath,
			HandlerFunc: s.handleListTriggers,
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

// Record stores a firing of a condition and assigns its id.
// A zero triggeredAt is filled from the service clock.
func (s *Service) Record(streamID, conditionID, description string, triggeredAt time.Time) (Trigger, error) {
	if triggeredAt.IsZero() {
		triggeredAt = s.clk.Now()
	}
	trigger := Trigger{
		ID:          uuid.NewString(),
		ConditionID: conditionID,
		StreamID:    streamID,
		TriggeredAt: triggeredAt.UTC(),
		Description: description,
	}
	if err := trigger.Validate(); err != nil {
		return Trigger{}, err
	}
	if err := s.triggers.Create(trigger); err != nil {
		return Trigger{}, err
	}
	s.diag.RecordedTrigger(trigger.ID, conditionID)
	return trigger, nil
}

// LastTriggerTime reports when the condition last fired.
// It satisfies the trigger history lookup of the grace period check.
func (s *Service) LastTriggerTime(conditionID string) (time.Time, bool, error) {
	return s.triggers.LastTriggerTime(conditionID)
}

// ListByCondition returns the firings of a condition in chronological order.
func (s *Service) ListByCondition(conditionID string, offset, limit int) ([]Trigger, error) {
	return s.triggers.List(conditionID, offset, limit)
}

// DeleteByCondition removes the trigger history of a condition.
// Called when the condition itself is deleted.
func (s *Service) DeleteByCondition(conditionID string) error {
	if err := s.triggers.DeleteCondition(conditionID); err != nil {
		return err
	}
	s.diag.DeletedConditionTriggers(conditionID)
	return nil
}

func (s *Service) conditionExists(streamID, conditionID string) (bool, error) {
	if s.ConditionService == nil {
		return true, nil
	}
	return s.ConditionService.ConditionExists(streamID, conditionID)
}

func (s *Service) convert(t Trigger) client.Trigger {
	return client.Trigger{
		ID:          t.ID,
		ConditionID: t.ConditionID,
		StreamID:    t.StreamID,
		TriggeredAt: t.TriggeredAt,
		Description: t.Description,
	}
}

func (s *Service) handleRecordTrigger(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	streamID := params.ByName("streamid")
	conditionID := params.ByName("conditionid")

	exists, err := s.conditionExists(streamID, conditionID)
	if err != nil {
		s.diag.Error("failed to check condition", err, keyvalue.KV("condition", conditionID))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}
	if !exists {
		httpd.HttpError(w, "unknown alert condition: "+conditionID, true, http.StatusNotFound)
		return
	}

	opts := client.RecordTriggerOptions{}
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		httpd.HttpError(w, "invalid JSON: "+err.Error(), true, http.StatusBadRequest)
		return
	}

	trigger, err := s.Record(streamID, conditionID, opts.Description, opts.TriggeredAt)
	if err != nil {
		s.diag.Error("failed to record trigger", err, keyvalue.KV("condition", conditionID))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(httpd.MarshalJSON(s.convert(trigger), true))
}

func (s *Service) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	params := httprouter.ParamsFromContext(r.Context())
	streamID := params.ByName("streamid")
	conditionID := params.ByName("conditionid")

	exists, err := s.conditionExists(streamID, conditionID)
	if err != nil {
		s.diag.Error("failed to check condition", err, keyvalue.KV("condition", conditionID))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}
	if !exists {
		httpd.HttpError(w, "unknown alert condition: "+conditionID, true, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
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

	triggers, err := s.triggers.List(conditionID, offset, limit)
	if err != nil {
		s.diag.Error("failed to list triggers", err, keyvalue.KV("condition", conditionID))
		httpd.HttpError(w, err.Error(), true, http.StatusInternalServerError)
		return
	}

	res := client.Triggers{Triggers: make([]client.Trigger, len(triggers))}
	for i, t := range triggers {
		res.Triggers[i] = s.convert(t)
	}
	_, _ = w.Write(httpd.MarshalJSON(res, true))
}
