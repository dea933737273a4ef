package condition

import (
	"time"

	"github.com/benbjohnson/clock"
)

// TriggerHistory reports when a condition last fired.
type TriggerHistory interface {
	LastTriggerTime(conditionID string) (time.Time, bool, error)
}

// GraceTracker answers whether a condition is inside its grace period,
// the window after a firing during which the condition stays silent.
type GraceTracker struct {
	factory *Factory
	history TriggerHistory
	clk     clock.Clock
}

type GraceTrackerOption func(*GraceTracker)

// WithGraceTrackerClock overrides the wall clock used for grace checks.
func WithGraceTrackerClock(clk clock.Clock) GraceTrackerOption {
	return func(g *GraceTracker) {
		g.clk = clk
	}
}

func NewGraceTracker(factory *Factory, history TriggerHistory, opts ...GraceTrackerOption) *GraceTracker {
	g := &GraceTracker{
		factory: factory,
		history: history,
		clk:     clock.New(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsInGracePeriod reports whether the condition fired less than its
// grace period ago. Conditions without a grace period or without any
// recorded firing are never in grace.
func (g *GraceTracker) IsInGracePeriod(c Condition) (bool, error) {
	grace, err := g.factory.GraceMinutes(c)
	if err != nil {
		return false, err
	}
	if grace <= 0 || g.history == nil {
		return false, nil
	}
	last, found, err := g.history.LastTriggerTime(c.ID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return g.clk.Now().Sub(last) < time.Duration(grace)*time.Minute, nil
}
