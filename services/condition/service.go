package condition

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streamwatch/streamwatch/auth"
	"github.com/streamwatch/streamwatch/keyvalue"
	"github.com/streamwatch/streamwatch/services/httpd"
	"github.com/streamwatch/streamwatch/services/storage"
)

// conditionNamespace is the storage namespace that holds condition data.
const conditionNamespace = "condition_store"

// Manager-level actions checked against the acting user, independent of
// the transport's method-based authorization.
const (
	ActionEditConditions = "streams:edit"
	ActionReadConditions = "streams:read"
)

type Diagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)

	CreatedCondition(id, conditionType, streamID string)
	UpdatedCondition(id string)
	DeletedCondition(id string)
	ValidationFailure(conditionType, streamID string, err error)
}

// StreamLookup reports whether a stream exists.
type StreamLookup interface {
	Exists(id string) (bool, error)
}

// AuthorizationCheck decides whether a user may perform an action
// against a stream.
type AuthorizationCheck interface {
	Authorize(user auth.User, action, streamID string) error
}

// PrivilegeAuthorizer is the default AuthorizationCheck. It maps actions
// to privileges on the stream resource and asks the user itself.
type PrivilegeAuthorizer struct{}

func (PrivilegeAuthorizer) Authorize(user auth.User, action, streamID string) error {
	var p auth.Privilege
	switch action {
	case ActionEditConditions:
		p = auth.WritePrivilege
	case ActionReadConditions:
		p = auth.ReadPrivilege
	default:
		return errors.Errorf("unknown action %q", action)
	}
	return user.AuthorizeAction(auth.Action{
		Resource:  auth.StreamResource(streamID),
		Privilege: p,
	})
}

// Summary is the external view of a condition, enriched with its
// current grace state.
type Summary struct {
	Condition
	InGracePeriod bool
}

// Service manages the lifecycle of alert conditions. All stateful
// behavior lives in storage, the service itself holds no condition
// state between calls.
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
	// StreamService guards every operation against unknown streams.
	// Wired by the server, may be nil in tests.
	StreamService StreamLookup
	// TriggerService supplies last trigger times for grace checks and
	// removes trigger history when a condition is deleted. Wired by the
	// server, may be nil in tests.
	TriggerService interface {
		TriggerHistory
		DeleteByCondition(conditionID string) error
	}
	// AuthorizationService is consulted before every operation.
	// Defaults to PrivilegeAuthorizer.
	AuthorizationService AuthorizationCheck

	registry *Registry
	factory  *Factory
	grace    *GraceTracker

	conditions ConditionDAO
	routes     []httpd.Route

	clk  clock.Clock
	diag Diagnostic

	conditionsCreated  prometheus.Counter
	conditionsUpdated  prometheus.Counter
	conditionsDeleted  prometheus.Counter
	validationFailures prometheus.Counter
}

type Option func(*Service)

// WithClock overrides the wall clock used for creation timestamps and
// grace checks.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clk = clk
	}
}

func NewService(c Config, registry *Registry, d Diagnostic, opts ...Option) *Service {
	s := &Service{
		config:               c,
		registry:             registry,
		AuthorizationService: PrivilegeAuthorizer{},
		clk:                  clock.New(),
		diag:                 d,
		conditionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamwatch",
			Subsystem: "conditions",
			Name:      "created_total",
			Help:      "Number of alert conditions created.",
		}),
		conditionsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamwatch",
			Subsystem: "conditions",
			Name:      "updated_total",
			Help:      "Number of alert conditions updated.",
		}),
		conditionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamwatch",
			Subsystem: "conditions",
			Name:      "deleted_total",
			Help:      "Number of alert conditions deleted.",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamwatch",
			Subsystem: "conditions",
			Name:      "validation_failures_total",
			Help:      "Number of rejected condition create/update requests.",
		}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.factory = NewFactory(registry, WithFactoryClock(s.clk))
	return s
}

func (s *Service) Open() error {
	store := s.StorageService.Store(conditionNamespace)
	conditions, err := newConditionKV(store)
	if err != nil {
		return err
	}
	s.conditions = conditions
	s.StorageService.Register(conditionNamespace, conditions)

	s.grace = NewGraceTracker(s.factory, s.TriggerService, WithGraceTrackerClock(s.clk))

	s.routes = s.apiRoutes()
	return s.HTTPDService.AddRoutes(s.routes)
}

func (s *Service) Close() error {
	if s.HTTPDService != nil {
		s.HTTPDService.DelRoutes(s.routes)
	}
	return nil
}

// PrometheusCollectors returns the lifecycle counters of the service.
func (s *Service) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.conditionsCreated,
		s.conditionsUpdated,
		s.conditionsDeleted,
		s.validationFailures,
	}
}

// Create validates and stores a new condition for a stream.
func (s *Service) Create(user auth.User, streamID, typ, title string, params map[string]interface{}) (Summary, error) {
	if err := s.authorize(user, ActionEditConditions, streamID); err != nil {
		return Summary{}, err
	}
	if err := s.checkStream(streamID); err != nil {
		return Summary{}, err
	}

	cond, err := s.factory.BuildNew(streamID, typ, title, user.Name(), params)
	if err != nil {
		s.noteValidationFailure(typ, streamID, err)
		return Summary{}, err
	}

	if err := s.withRetry(func() error { return s.conditions.Create(cond) }); err != nil {
		return Summary{}, err
	}
	s.conditionsCreated.Inc()
	s.diag.CreatedCondition(cond.ID, cond.Type, streamID)
	return s.summarize(cond), nil
}

// Get returns a single condition of a stream.
func (s *Service) Get(user auth.User, streamID, conditionID string) (Summary, error) {
	if err := s.authorize(user, ActionReadConditions, streamID); err != nil {
		return Summary{}, err
	}
	if err := s.checkStream(streamID); err != nil {
		return Summary{}, err
	}

	var cond Condition
	err := s.withRetry(func() error {
		var err error
		cond, err = s.conditions.Get(streamID, conditionID)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrNoConditionExists {
			return Summary{}, errors.Wrap(ErrConditionNotFound, conditionID)
		}
		return Summary{}, err
	}
	return s.summarize(cond), nil
}

// List returns every condition of a stream in insertion order.
func (s *Service) List(user auth.User, streamID string) ([]Summary, error) {
	if err := s.authorize(user, ActionReadConditions, streamID); err != nil {
		return nil, err
	}
	if err := s.checkStream(streamID); err != nil {
		return nil, err
	}

	var conditions []Condition
	err := s.withRetry(func() error {
		var err error
		conditions, err = s.conditions.ListStream(streamID)
		return err
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, len(conditions))
	for i, cond := range conditions {
		summaries[i] = s.summarize(cond)
	}
	return summaries, nil
}

// Update replaces type-scoped fields of an existing condition.
// Identity fields are preserved, the last write wins on concurrent
// updates of the same condition.
func (s *Service) Update(user auth.User, streamID, conditionID, typ, title string, params map[string]interface{}) (Summary, error) {
	if err := s.authorize(user, ActionEditConditions, streamID); err != nil {
		return Summary{}, err
	}
	if err := s.checkStream(streamID); err != nil {
		return Summary{}, err
	}

	var existing Condition
	err := s.withRetry(func() error {
		var err error
		existing, err = s.conditions.Get(streamID, conditionID)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrNoConditionExists {
			return Summary{}, errors.Wrap(ErrConditionNotFound, conditionID)
		}
		return Summary{}, err
	}

	updated, err := s.factory.ApplyUpdate(existing, typ, title, params)
	if err != nil {
		s.noteValidationFailure(typ, streamID, err)
		return Summary{}, err
	}

	err = s.withRetry(func() error { return s.conditions.Replace(updated) })
	if err != nil {
		if errors.Cause(err) == ErrNoConditionExists {
			// The condition vanished between the read and the write.
			return Summary{}, errors.Wrap(ErrConflictingUpdate, conditionID)
		}
		return Summary{}, err
	}
	s.conditionsUpdated.Inc()
	s.diag.UpdatedCondition(conditionID)
	return s.summarize(updated), nil
}

// Delete removes a condition and its trigger history.
// Deleting a missing condition returns ErrConditionNotFound.
func (s *Service) Delete(user auth.User, streamID, conditionID string) error {
	if err := s.authorize(user, ActionEditConditions, streamID); err != nil {
		return err
	}
	if err := s.checkStream(streamID); err != nil {
		return err
	}

	err := s.withRetry(func() error { return s.conditions.Delete(streamID, conditionID) })
	if err != nil {
		if errors.Cause(err) == ErrNoConditionExists {
			return errors.Wrap(ErrConditionNotFound, conditionID)
		}
		return err
	}
	if s.TriggerService != nil {
		if err := s.TriggerService.DeleteByCondition(conditionID); err != nil {
			return errors.Wrapf(err, "condition %s deleted but trigger history cleanup failed", conditionID)
		}
	}
	s.conditionsDeleted.Inc()
	s.diag.DeletedCondition(conditionID)
	return nil
}

// DeleteStreamConditions removes every condition of a stream along with
// the trigger history. Called by the streams service when a stream is
// deleted.
func (s *Service) DeleteStreamConditions(streamID string) error {
	var deleted []string
	err := s.withRetry(func() error {
		var err error
		deleted, err = s.conditions.DeleteStream(streamID)
		return err
	})
	if err != nil {
		return err
	}
	for _, id := range deleted {
		if s.TriggerService != nil {
			if err := s.TriggerService.DeleteByCondition(id); err != nil {
				return errors.Wrapf(err, "failed to delete trigger history of condition %s", id)
			}
		}
		s.conditionsDeleted.Inc()
		s.diag.DeletedCondition(id)
	}
	return nil
}

// ConditionExists reports whether a condition exists within a stream.
// Used by the trigger service to reject firings for unknown conditions.
func (s *Service) ConditionExists(streamID, conditionID string) (bool, error) {
	var exists bool
	err := s.withRetry(func() error {
		var err error
		exists, err = s.conditions.Exists(streamID, conditionID)
		return err
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Service) authorize(user auth.User, action, streamID string) error {
	if err := s.AuthorizationService.Authorize(user, action, streamID); err != nil {
		return errors.Wrap(ErrPermissionDenied, err.Error())
	}
	return nil
}

func (s *Service) checkStream(streamID string) error {
	if s.StreamService == nil {
		return nil
	}
	exists, err := s.StreamService.Exists(streamID)
	if err != nil {
		return errors.Wrapf(err, "failed to check stream %s", streamID)
	}
	if !exists {
		return errors.Wrap(ErrStreamNotFound, streamID)
	}
	return nil
}

func (s *Service) summarize(c Condition) Summary {
	inGrace, err := s.grace.IsInGracePeriod(c)
	if err != nil {
		s.diag.Error("failed to compute grace period", err,
			keyvalue.KV("condition", c.ID), keyvalue.KV("stream", c.StreamID))
		inGrace = false
	}
	return Summary{Condition: c, InGracePeriod: inGrace}
}

func (s *Service) noteValidationFailure(typ, streamID string, err error) {
	switch errors.Cause(err) {
	case ErrInvalidParameters, ErrUnknownConditionType, ErrTypeMismatch:
		s.validationFailures.Inc()
		s.diag.ValidationFailure(typ, streamID, err)
	}
}

// withRetry runs a storage operation, retrying transient failures with
// exponential backoff. Domain outcomes pass through untouched, exhausted
// retries surface as ErrStorageUnavailable.
func (s *Service) withRetry(op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(s.config.StorageRetryInterval)
	b.MaxElapsedTime = 0
	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		switch errors.Cause(err) {
		case ErrConditionExists, ErrNoConditionExists:
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(b, uint64(s.config.StorageMaxRetries)))
	if err == nil {
		return nil
	}
	switch errors.Cause(err) {
	case ErrConditionExists, ErrNoConditionExists:
		return err
	}
	return errors.Wrap(ErrStorageUnavailable, err.Error())
}
