// Package body is the receiving end of the link: it drives the routing
// relays and volume stages of the mixer from the synchronized state.
package body

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"

	"mixer-link/attenuator"
	"mixer-link/link"
	"mixer-link/protocol"
	"mixer-link/state"
)

// FailsafeTimeout is how long the body waits without a valid message before
// it mutes both channels.
const FailsafeTimeout = 3 * link.HeartbeatPeriod

// Pin is the part of gpio.PinOut a relay needs.
type Pin interface {
	Out(l gpio.Level) error
}

type Relays struct {
	Music Pin
	Mic   Pin
}

// Volumes holds the attenuator for each channel.
type Volumes struct {
	Music attenuator.Attenuator
	Mic   attenuator.Attenuator
}

// output is what was last written to the hardware.
type output struct {
	musicRelay, micRelay bool
	musicVol, micVol     int
}

type Body struct {
	store   *state.Store
	relays  Relays
	volumes Volumes
	log     *slog.Logger

	Timeout time.Duration
	Now     func() time.Time

	lastValid time.Time
	failsafe  bool
	written   *output
}

func New(store *state.Store, relays Relays, volumes Volumes, logger *slog.Logger) *Body {
	if logger == nil {
		logger = slog.Default()
	}
	if volumes.Music == nil {
		volumes.Music = attenuator.Nop{}
	}
	if volumes.Mic == nil {
		volumes.Mic = attenuator.Nop{}
	}
	return &Body{
		store:   store,
		relays:  relays,
		volumes: volumes,
		log:     logger,
		Timeout: FailsafeTimeout,
		Now:     time.Now,
	}
}

// Init puts the body in its power-up state: line-in, wired mic, both
// channels muted until the controller reports in.
func (b *Body) Init(now time.Time) error {
	s := b.store.Update(func(s *state.DeviceState) {
		s.MusicRelay, s.MicRelay = false, false
		s.MusicVolume, s.MicVolume = 0, 0
		s.MainFader = 100
	})
	b.lastValid = now
	return b.write(s)
}

// Apply is the link's update callback. s is the store after u was applied.
func (b *Body) Apply(u protocol.Update, s state.DeviceState) {
	b.lastValid = b.Now()
	if b.failsafe {
		b.failsafe = false
		b.log.Info("link restored, leaving failsafe")
	}

	if u.Shutdown {
		b.log.Info("shutdown notice received, muting and falling back")
		s = b.store.Update(func(s *state.DeviceState) {
			s.MusicRelay, s.MicRelay = false, false
			s.MusicVolume, s.MicVolume = 0, 0
		})
	}

	if err := b.write(s); err != nil {
		b.log.Error("error applying state", "err", err)
	}
}

// Check mutes both channels once if nothing valid has arrived within
// Timeout. It runs from the link's poll hook.
func (b *Body) Check(now time.Time) {
	if b.failsafe || now.Sub(b.lastValid) < b.Timeout {
		return
	}
	b.failsafe = true
	b.log.Warn("controller silent, muting", "since", b.lastValid, "timeout", b.Timeout)

	err := errors.Join(b.volumes.Music.SetVolume(0), b.volumes.Mic.SetVolume(0))
	if err != nil {
		b.log.Error("error muting", "err", err)
	}
	b.written = nil
}

func (b *Body) Failsafe() bool { return b.failsafe }

func (b *Body) write(s state.DeviceState) error {
	next := output{
		musicRelay: s.MusicRelay,
		micRelay:   s.MicRelay,
		musicVol:   s.MusicVolume,
		micVol:     s.MicVolume,
	}
	if b.written != nil && *b.written == next {
		return nil
	}

	var errs []error
	if b.written == nil || b.written.musicRelay != next.musicRelay || b.written.micRelay != next.micRelay {
		// music: bluetooth drives low, line-in high
		// mic: wireless drives high, wired low
		if b.relays.Music != nil {
			errs = append(errs, b.relays.Music.Out(gpio.Level(!next.musicRelay)))
		}
		if b.relays.Mic != nil {
			errs = append(errs, b.relays.Mic.Out(gpio.Level(next.micRelay)))
		}
		b.log.Info("relay update", "music", musicLabel(next.musicRelay), "mic", micLabel(next.micRelay))
	}
	if b.written == nil || b.written.musicVol != next.musicVol {
		errs = append(errs, b.volumes.Music.SetVolume(next.musicVol))
	}
	if b.written == nil || b.written.micVol != next.micVol {
		errs = append(errs, b.volumes.Mic.SetVolume(next.micVol))
	}

	if err := errors.Join(errs...); err != nil {
		b.written = nil
		return err
	}
	b.written = &next
	b.log.Debug("applied", "music", next.musicVol, "mic", next.micVol)
	return nil
}

// Console handles the single-character debug commands read from the local
// terminal. It returns the reply to print and false for unknown input.
func (b *Body) Console(c byte) (string, bool) {
	switch c {
	case 'm':
		s := b.store.ToggleMusicRelay()
		if err := b.write(s); err != nil {
			return fmt.Sprintf("error: %v", err), true
		}
		return "toggled music relay: " + b.Status(), true
	case 'c':
		s := b.store.ToggleMicRelay()
		if err := b.write(s); err != nil {
			return fmt.Sprintf("error: %v", err), true
		}
		return "toggled mic relay: " + b.Status(), true
	case '?':
		return "m=toggle music, c=toggle mic | " + b.Status(), true
	default:
		return "", false
	}
}

func (b *Body) Status() string {
	s := b.store.Snapshot()
	return fmt.Sprintf("music: %s vol %d | mic: %s vol %d",
		musicLabel(s.MusicRelay), s.MusicVolume, micLabel(s.MicRelay), s.MicVolume)
}

func musicLabel(on bool) string {
	if on {
		return "bluetooth"
	}
	return "line-in"
}

func micLabel(on bool) string {
	if on {
		return "wireless"
	}
	return "wired"
}
