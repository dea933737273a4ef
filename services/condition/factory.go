package condition

import (
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/streamwatch/streamwatch/uuid"
)

// Factory builds and updates condition records from raw API input.
// It resolves types against the registry, validates parameters and
// makes the type defaults explicit. It never touches storage.
type Factory struct {
	registry *Registry
	clk      clock.Clock
}

type FactoryOption func(*Factory)

// WithFactoryClock overrides the wall clock used for creation timestamps.
func WithFactoryClock(clk clock.Clock) FactoryOption {
	return func(f *Factory) {
		f.clk = clk
	}
}

func NewFactory(registry *Registry, opts ...FactoryOption) *Factory {
	f := &Factory{
		registry: registry,
		clk:      clock.New(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BuildNew assembles a condition record for a create request,
// assigning its id and creation time.
func (f *Factory) BuildNew(streamID, typ, title, creatorUserID string, params map[string]interface{}) (Condition, error) {
	typ = strings.ToLower(typ)
	normalized, err := f.normalize(typ, params)
	if err != nil {
		return Condition{}, err
	}
	return Condition{
		ID:            uuid.NewString(),
		StreamID:      streamID,
		Type:          typ,
		Title:         title,
		Parameters:    normalized,
		CreatedAt:     f.clk.Now().UTC(),
		CreatorUserID: creatorUserID,
	}, nil
}

// ApplyUpdate assembles the updated form of an existing condition.
// Identity fields are preserved, requesting a different type fails with
// ErrTypeMismatch.
func (f *Factory) ApplyUpdate(existing Condition, typ, title string, params map[string]interface{}) (Condition, error) {
	typ = strings.ToLower(typ)
	if typ != existing.Type {
		return Condition{}, errors.Wrapf(ErrTypeMismatch, "condition %s has type %q, requested %q", existing.ID, existing.Type, typ)
	}
	normalized, err := f.normalize(typ, params)
	if err != nil {
		return Condition{}, err
	}
	updated := existing
	updated.Title = title
	updated.Parameters = normalized
	return updated, nil
}

// GraceMinutes decodes the grace period from a stored condition.
func (f *Factory) GraceMinutes(c Condition) (int, error) {
	newConfig, err := f.registry.Resolve(c.Type)
	if err != nil {
		return 0, err
	}
	cfg := newConfig()
	if err := decodeParameters(c.Parameters, cfg); err != nil {
		return 0, errors.Wrap(ErrInvalidParameters, err.Error())
	}
	return cfg.GraceMinutes(), nil
}

func (f *Factory) normalize(typ string, params map[string]interface{}) (map[string]interface{}, error) {
	newConfig, err := f.registry.Resolve(typ)
	if err != nil {
		return nil, err
	}
	cfg := newConfig()
	if err := decodeParameters(params, cfg); err != nil {
		return nil, errors.Wrap(ErrInvalidParameters, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidParameters, err.Error())
	}
	return normalizeParameters(cfg)
}
