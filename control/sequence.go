package control

import (
	"errors"
	"time"
)

// SettleDelay is how long a channel sits at zero volume on the wire before
// its relay is allowed to switch.
const SettleDelay = 50 * time.Millisecond

var ErrToggleInProgress = errors.New("relay toggle already in progress")

type Phase uint8

const (
	PHASE_IDLE Phase = iota
	// PHASE_PENDING_ZERO: the zero volume is being stored and sent.
	PHASE_PENDING_ZERO
	// PHASE_SETTLING: zero sent, waiting out SettleDelay.
	PHASE_SETTLING
	// PHASE_TOGGLED: relay flipped and sent. A new toggle may start.
	PHASE_TOGGLED
)

func (p Phase) String() string {
	switch p {
	case PHASE_IDLE:
		return "idle"
	case PHASE_PENDING_ZERO:
		return "pendingZero"
	case PHASE_SETTLING:
		return "settling"
	case PHASE_TOGGLED:
		return "toggled"
	default:
		return "unknown"
	}
}

// Sequence tracks one channel's relay toggle. It holds no references to the
// store or the link; the Dispatcher performs the side effects and advances
// the phase.
type Sequence struct {
	Channel  Channel
	phase    Phase
	deadline time.Time
	// target is the relay position the toggle will set.
	target bool
}

func (s *Sequence) Phase() Phase { return s.phase }

// Busy reports whether a toggle has started and not yet flipped the relay.
func (s *Sequence) Busy() bool {
	return s.phase == PHASE_PENDING_ZERO || s.phase == PHASE_SETTLING
}

// Deadline is when the relay may flip. Zero unless settling.
func (s *Sequence) Deadline() time.Time {
	if s.phase != PHASE_SETTLING {
		return time.Time{}
	}
	return s.deadline
}

func (s *Sequence) begin() error {
	if s.Busy() {
		return ErrToggleInProgress
	}
	s.phase = PHASE_PENDING_ZERO
	return nil
}

func (s *Sequence) settle(now time.Time) {
	s.phase = PHASE_SETTLING
	s.deadline = now.Add(SettleDelay)
}

func (s *Sequence) due(now time.Time) bool {
	return s.phase == PHASE_SETTLING && !now.Before(s.deadline)
}

func (s *Sequence) cancel() {
	s.phase = PHASE_IDLE
	s.deadline = time.Time{}
}

func (s *Sequence) finish() {
	s.phase = PHASE_TOGGLED
	s.deadline = time.Time{}
}
