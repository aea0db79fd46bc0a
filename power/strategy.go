package power

import (
	"fmt"
	"strings"
	"time"
)

// ConfirmDelay is how long the input must stay off before the system is
// considered powered down.
const ConfirmDelay = 15000 * time.Millisecond

// DefaultCounterThreshold is used when a CounterStrategy is built with a
// negative threshold.
const DefaultCounterThreshold = 2

// Strategy turns raw samples into a debounced system state. It is told the
// current state and returns the state the monitor should be in after this
// sample.
type Strategy interface {
	Next(current State, on bool, now time.Time) State
	Pending() bool
	// Reset forgets any partial progress towards an edge.
	Reset()
	Name() string
}

// ConfirmStrategy acts on power-on immediately but only powers off after the
// input has read off continuously for Delay.
type ConfirmStrategy struct {
	Delay time.Duration

	pending bool
	since   time.Time
}

func NewConfirmStrategy() *ConfirmStrategy {
	return &ConfirmStrategy{Delay: ConfirmDelay}
}

func (c *ConfirmStrategy) Name() string { return "confirm" }

// Pending reports whether a power-off is waiting for confirmation.
func (c *ConfirmStrategy) Pending() bool { return c.pending }

func (c *ConfirmStrategy) Reset() {
	c.pending = false
	c.since = time.Time{}
}

func (c *ConfirmStrategy) Next(current State, on bool, now time.Time) State {
	if on {
		c.pending = false
		return SYSTEM_ON
	}
	if current == SYSTEM_OFF {
		return SYSTEM_OFF
	}
	if !c.pending {
		c.pending = true
		c.since = now
		return SYSTEM_ON
	}
	if now.Sub(c.since) >= c.Delay {
		c.pending = false
		return SYSTEM_OFF
	}
	return SYSTEM_ON
}

// CounterStrategy switches once more than Threshold consecutive samples have
// disagreed with the current state. A sample that agrees resets the count.
type CounterStrategy struct {
	Threshold int

	count int
}

func NewCounterStrategy(threshold int) *CounterStrategy {
	if threshold < 0 {
		threshold = DefaultCounterThreshold
	}
	return &CounterStrategy{Threshold: threshold}
}

func (c *CounterStrategy) Name() string { return "counter" }

func (c *CounterStrategy) Pending() bool { return c.count > 0 }

func (c *CounterStrategy) Reset() { c.count = 0 }

func (c *CounterStrategy) Next(current State, on bool, now time.Time) State {
	if on == (current == SYSTEM_ON) {
		c.count = 0
		return current
	}
	c.count++
	if c.count > c.Threshold {
		c.count = 0
		if on {
			return SYSTEM_ON
		}
		return SYSTEM_OFF
	}
	return current
}

// ParseStrategy builds a strategy from its config name.
func ParseStrategy(name string, threshold int) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", "confirm":
		return NewConfirmStrategy(), nil
	case "counter":
		return NewCounterStrategy(threshold), nil
	default:
		return nil, fmt.Errorf("unknown debounce strategy %q", name)
	}
}
