// Package power watches the charger-sense input and powers the controller
// down and back up on debounced edges.
package power

import (
	"log/slog"
	"time"

	"mixer-link/control"
	"mixer-link/expander"
	"mixer-link/state"
)

type State uint8

const (
	SYSTEM_ON State = iota
	SYSTEM_OFF
)

func (s State) String() string {
	if s == SYSTEM_OFF {
		return "off"
	}
	return "on"
}

type Sampler interface {
	Read() expander.Sample
}

// Actions are the side effects of an edge.
type Actions interface {
	Backlight(on bool)
	ShowWaking()
	Sync(s state.DeviceState)
	SendState() error
	SendShutdown() error
}

// Wire is the link half of Actions.
type Wire interface {
	SendState() error
	SendShutdown() error
}

// Bundle adapts a view and a link into Actions.
type Bundle struct {
	control.View
	Wire
}

type Monitor struct {
	sampler  Sampler
	store    *state.Store
	actions  Actions
	strategy Strategy
	log      *slog.Logger

	// NotifyShutdown adds the {"pwr":0} notice to the off bundle.
	NotifyShutdown bool
	// Toggles, when set, has its pending music toggle dropped by the off
	// bundle so the forced line-in position sticks.
	Toggles Canceler

	current State
	resync  bool
}

// Canceler abandons a relay toggle that has not flipped yet.
type Canceler interface {
	Cancel(ch control.Channel)
}

func NewMonitor(sampler Sampler, store *state.Store, actions Actions, strategy Strategy, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if strategy == nil {
		strategy = NewConfirmStrategy()
	}
	return &Monitor{
		sampler:  sampler,
		store:    store,
		actions:  actions,
		strategy: strategy,
		log:      logger,
		current:  SYSTEM_ON,
	}
}

func (m *Monitor) State() State { return m.current }

// Pending reports whether the strategy is part way to an edge.
func (m *Monitor) Pending() bool { return m.strategy.Pending() }

func (m *Monitor) Strategy() Strategy { return m.strategy }

// Poll samples the input once and runs at most one edge bundle. A failed
// read skips the cycle; disabled power sensing also drops any pending edge.
// The poll after a power-on edge replaces the waking frame with the state.
func (m *Monitor) Poll(now time.Time) {
	if m.resync {
		// the waking frame has been up for a tick
		m.resync = false
		m.actions.Sync(m.store.Snapshot())
	}
	if !m.store.Snapshot().PowerSensing {
		m.strategy.Reset()
		return
	}
	sample := m.sampler.Read()
	if !sample.OK {
		m.log.Debug("power sense read failed, skipping")
		return
	}

	next := m.strategy.Next(m.current, sample.Bit, now)
	if next == m.current {
		return
	}
	m.current = next

	switch next {
	case SYSTEM_OFF:
		m.powerOff()
	case SYSTEM_ON:
		m.powerOn()
	}
}

func (m *Monitor) powerOff() {
	m.log.Info("power: switch off detected, shutting down", "strategy", m.strategy.Name())
	m.actions.Backlight(false)
	if m.Toggles != nil {
		m.Toggles.Cancel(control.CHANNEL_MUSIC)
	}
	m.store.SetMusicRelay(false)
	m.actions.SendState()
	if m.NotifyShutdown {
		m.actions.SendShutdown()
	}
}

func (m *Monitor) powerOn() {
	m.log.Info("power: switch on detected, waking up")
	m.actions.Backlight(true)
	m.actions.ShowWaking()
	m.actions.SendState()
	m.resync = true
}
