package condition

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ConditionConfig is the decoded, typed form of one condition type's
// parameters.
type ConditionConfig interface {
	// Validate checks the decoded parameters against the constraints of
	// the condition type.
	Validate() error
	// GraceMinutes reports the configured grace period in minutes.
	// Zero means no grace period.
	GraceMinutes() int
}

// Registry resolves condition type identifiers to their parameter
// configurations. Registration happens during startup wiring, afterwards
// the registry is only read.
type Registry struct {
	mu    sync.RWMutex
	types map[string]func() ConditionConfig
}

func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]func() ConditionConfig),
	}
}

// DefaultRegistry returns a registry with the built-in condition types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Constructors return configs pre-filled with the type defaults,
	// decoding parameters over them keeps defaults for omitted keys.
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(r.Register(TypeFieldValue, func() ConditionConfig { return newFieldValueConfig() }))
	must(r.Register(TypeMessageCount, func() ConditionConfig { return newMessageCountConfig() }))
	must(r.Register(TypeFieldContentValue, func() ConditionConfig { return newFieldContentValueConfig() }))
	return r
}

// Register adds a condition type. The newConfig function must return a
// fresh config carrying the type's default parameter values.
func (r *Registry) Register(typ string, newConfig func() ConditionConfig) error {
	if typ == "" {
		return errors.New("condition type identifier must not be empty")
	}
	if newConfig == nil {
		return errors.New("condition type constructor must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[typ]; ok {
		return errors.Errorf("condition type %q already registered", typ)
	}
	r.types[typ] = newConfig
	return nil
}

// Resolve returns the config constructor of a type identifier.
func (r *Registry) Resolve(typ string) (func() ConditionConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	newConfig, ok := r.types[typ]
	if !ok {
		return nil, errors.Wrap(ErrUnknownConditionType, typ)
	}
	return newConfig, nil
}

// Types returns the registered type identifiers in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.types))
	for typ := range r.types {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
