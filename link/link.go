package link

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mixer-link/protocol"
	"mixer-link/state"
)

const (
	// HeartbeatPeriod is the interval between unconditional full-state sends.
	HeartbeatPeriod = 2000 * time.Millisecond
	// PollPeriod paces the fast hooks (relay sequencing, persistence).
	PollPeriod = 10 * time.Millisecond
)

var ErrBusy = errors.New("link work queue full")

// Transport carries newline-delimited lines to and from the peer.
type Transport interface {
	Send(line []byte) error
	Lines() <-chan []byte
}

// Role decides what the link does with inbound state messages.
type Role int

const (
	// RoleController owns the state: inbound state lines are ignored and only
	// queries are answered.
	RoleController Role = iota
	// RoleFollower applies inbound state lines to its store.
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RoleFollower:
		return "follower"
	default:
		return "unknown"
	}
}

// TickFunc runs on every heartbeat tick before the heartbeat is sent.
type TickFunc func(now time.Time)

// UpdateFunc is called after an inbound update has been applied.
type UpdateFunc func(u protocol.Update, s state.DeviceState)

type Link struct {
	store     *state.Store
	transport Transport
	role      Role
	log       *slog.Logger

	work chan func()

	mu       sync.Mutex
	hooks    []TickFunc
	polls    []TickFunc
	onUpdate UpdateFunc
}

func New(store *state.Store, transport Transport, role Role, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{
		store:     store,
		transport: transport,
		role:      role,
		log:       logger,
		work:      make(chan func(), 16),
	}
}

// Post queues f to run on the goroutine executing Run. Other goroutines use
// it to hand over work that must not interleave with the loop.
func (l *Link) Post(f func()) error {
	select {
	case l.work <- f:
		return nil
	default:
		return ErrBusy
	}
}

// OnPoll registers f to run every PollPeriod.
func (l *Link) OnPoll(f TickFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.polls = append(l.polls, f)
}

// Poll runs the poll hooks once.
func (l *Link) Poll(now time.Time) {
	l.mu.Lock()
	polls := append([]TickFunc(nil), l.polls...)
	l.mu.Unlock()

	for _, p := range polls {
		p(now)
	}
}

// OnTick registers f to run on every heartbeat tick.
func (l *Link) OnTick(f TickFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, f)
}

// OnUpdate registers the callback for applied inbound updates.
func (l *Link) OnUpdate(f UpdateFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onUpdate = f
}

func (l *Link) send(line []byte) error {
	if err := l.transport.Send(line); err != nil {
		l.log.Warn("error sending", "err", err)
		return err
	}
	l.log.Debug("tx", "line", string(line[:len(line)-1]))
	return nil
}

// SendState transmits the current state immediately.
func (l *Link) SendState() error {
	return l.send(l.store.Encode())
}

// SendShutdown transmits the explicit power-off notice.
func (l *Link) SendShutdown() error {
	return l.send(protocol.EncodeShutdown())
}

// Tick runs the hooks and sends the heartbeat.
func (l *Link) Tick(now time.Time) {
	l.mu.Lock()
	hooks := append([]TickFunc(nil), l.hooks...)
	l.mu.Unlock()

	for _, h := range hooks {
		h(now)
	}
	if l.role == RoleController {
		l.SendState()
	}
}

// HandleLine processes one received line. Malformed lines are logged and
// dropped without touching the store.
func (l *Link) HandleLine(line []byte) {
	l.log.Debug("rx", "line", string(line))

	if protocol.IsQuery(line) {
		l.SendState()
		return
	}

	u, err := protocol.Decode(line)
	if err != nil {
		if !errors.Is(err, protocol.ErrEmptyLine) {
			l.log.Warn("dropping malformed line", "err", err)
		}
		return
	}

	if l.role != RoleFollower {
		l.log.Debug("ignoring inbound state", "update", u.String())
		return
	}

	s := l.store.Apply(u)

	l.mu.Lock()
	cb := l.onUpdate
	l.mu.Unlock()
	if cb != nil {
		cb(u, s)
	}
}

// Run drives the heartbeat, the poll hooks, posted work and the receive path
// until ctx is done or the transport closes its line channel. Everything it
// calls runs on this one goroutine.
func (l *Link) Run(ctx context.Context) error {
	ticker := time.NewTicker(HeartbeatPeriod)
	defer ticker.Stop()
	poll := time.NewTicker(PollPeriod)
	defer poll.Stop()

	lines := l.transport.Lines()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("link shutting down", "role", l.role.String())
			return ctx.Err()
		case now := <-ticker.C:
			l.Tick(now)
		case now := <-poll.C:
			l.Poll(now)
		case f := <-l.work:
			f()
		case line, ok := <-lines:
			if !ok {
				return errors.New("transport closed")
			}
			l.HandleLine(line)
		}
	}
}
