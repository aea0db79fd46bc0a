package control

import (
	"fmt"
	"log/slog"
	"time"

	"mixer-link/state"
)

// Sender transmits the current state to the peer.
type Sender interface {
	SendState() error
}

// Flusher persists the state store immediately.
type Flusher interface {
	Flush(now time.Time) bool
}

// Dispatcher is the single consumer of Commands. It must be driven from one
// goroutine; Tick advances any relay toggles that are settling.
type Dispatcher struct {
	store  *state.Store
	sender Sender
	view   View
	gate   Flusher
	log    *slog.Logger

	seqs [2]Sequence
}

func NewDispatcher(store *state.Store, sender Sender, view View, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if view == nil {
		view = Views(nil)
	}
	d := &Dispatcher{
		store:  store,
		sender: sender,
		view:   view,
		log:    logger,
	}
	d.seqs[CHANNEL_MUSIC].Channel = CHANNEL_MUSIC
	d.seqs[CHANNEL_MIC].Channel = CHANNEL_MIC
	return d
}

// SetGate makes power-sensing changes persist immediately instead of
// waiting for the throttled save.
func (d *Dispatcher) SetGate(g Flusher) {
	d.gate = g
}

// Sequence exposes the toggle state of a channel.
func (d *Dispatcher) Sequence(ch Channel) *Sequence {
	return &d.seqs[ch]
}

func (d *Dispatcher) Dispatch(cmd Command, now time.Time) error {
	d.log.Debug("dispatch", "cmd", cmd.String())

	switch cmd.Type {
	case CMD_SET_MUSIC_VOLUME:
		if err := d.settling(CHANNEL_MUSIC, cmd); err != nil {
			return err
		}
		d.mutate(func() state.DeviceState { return d.store.SetMusicVolume(cmd.Value) })
	case CMD_SET_MIC_VOLUME:
		if err := d.settling(CHANNEL_MIC, cmd); err != nil {
			return err
		}
		d.mutate(func() state.DeviceState { return d.store.SetMicVolume(cmd.Value) })
	case CMD_SET_MAIN_FADER:
		// the fader scales both channels
		if d.Busy() {
			d.log.Debug("fader change rejected while a relay settles")
			return ErrToggleInProgress
		}
		d.mutate(func() state.DeviceState { return d.store.SetMainFader(cmd.Value) })
	case CMD_TOGGLE_MUSIC_RELAY:
		return d.startToggle(CHANNEL_MUSIC, now)
	case CMD_TOGGLE_MIC_RELAY:
		return d.startToggle(CHANNEL_MIC, now)
	case CMD_SET_POWER_SENSING:
		s := d.store.SetPowerSensing(cmd.Enabled)
		d.view.Sync(s)
		d.sender.SendState()
		if d.gate != nil {
			d.gate.Flush(now)
		}
		d.log.Info("power sensing changed", "enabled", cmd.Enabled)
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
	return nil
}

// settling rejects a level change for ch while its relay is switching: the
// channel has to stay at zero until the flip has been sent.
func (d *Dispatcher) settling(ch Channel, cmd Command) error {
	if !d.seqs[ch].Busy() {
		return nil
	}
	d.log.Debug("volume change rejected while relay settles", "channel", ch.String(), "cmd", cmd.String())
	return ErrToggleInProgress
}

func (d *Dispatcher) mutate(f func() state.DeviceState) {
	s := f()
	d.view.Sync(s)
	d.sender.SendState()
}

// startToggle zeroes the channel, shows and sends the zero, then arms the
// settle deadline. The relay itself flips in Tick.
func (d *Dispatcher) startToggle(ch Channel, now time.Time) error {
	seq := &d.seqs[ch]
	if err := seq.begin(); err != nil {
		d.log.Warn("toggle ignored", "channel", ch.String(), "phase", seq.Phase().String())
		return err
	}

	var target bool
	d.store.Update(func(s *state.DeviceState) {
		switch ch {
		case CHANNEL_MUSIC:
			s.MusicVolume = 0
			target = !s.MusicRelay
		case CHANNEL_MIC:
			s.MicVolume = 0
			target = !s.MicRelay
		}
	})
	seq.target = target
	d.view.SetSlider(ch, 0)
	d.sender.SendState()

	seq.settle(now)
	d.log.Debug("relay settling", "channel", ch.String(), "deadline", seq.Deadline())
	return nil
}

// Tick flips the relay of every channel whose settle delay has elapsed.
func (d *Dispatcher) Tick(now time.Time) {
	for i := range d.seqs {
		seq := &d.seqs[i]
		if !seq.due(now) {
			continue
		}

		var s state.DeviceState
		switch seq.Channel {
		case CHANNEL_MUSIC:
			s = d.store.SetMusicRelay(seq.target)
		case CHANNEL_MIC:
			s = d.store.SetMicRelay(seq.target)
		}
		d.view.Sync(s)
		d.sender.SendState()
		seq.finish()

		d.log.Info("relay toggled", "channel", seq.Channel.String(), "music", s.MusicRelay, "mic", s.MicRelay)
	}
}

// Cancel abandons a toggle on ch that has not flipped yet. The channel is
// left at zero volume.
func (d *Dispatcher) Cancel(ch Channel) {
	seq := &d.seqs[ch]
	if !seq.Busy() {
		return
	}
	seq.cancel()
	d.log.Info("relay toggle cancelled", "channel", ch.String())
}

// Busy reports whether any channel is mid-toggle.
func (d *Dispatcher) Busy() bool {
	for i := range d.seqs {
		if d.seqs[i].Busy() {
			return true
		}
	}
	return false
}
