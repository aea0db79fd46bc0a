package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mixer-link/internal/mathx"
	"mixer-link/nvs"
	"mixer-link/protocol"
)

// Persistent storage keys.
const (
	KEY_MUSIC_VOLUME  = "mus_v"
	KEY_MIC_VOLUME    = "mic_v"
	KEY_MAIN_FADER    = "main_f"
	KEY_MUSIC_RELAY   = "mus_r"
	KEY_MIC_RELAY     = "mic_r"
	KEY_POWER_SENSING = "pwr_s"
)

// DeviceState is the synchronized record. Volumes and fader are percentages.
type DeviceState struct {
	MusicVolume  int
	MicVolume    int
	MainFader    int
	MusicRelay   bool
	MicRelay     bool
	PowerSensing bool
	Dirty        bool
}

func Defaults() DeviceState {
	return DeviceState{
		MusicVolume:  80,
		MicVolume:    50,
		MainFader:    100,
		MusicRelay:   true,
		MicRelay:     true,
		PowerSensing: true,
	}
}

// Frame returns the encoder input for s.
func (s DeviceState) Frame() protocol.Frame {
	return protocol.Frame{
		MusicVolume: s.MusicVolume,
		MicVolume:   s.MicVolume,
		MainFader:   s.MainFader,
		MusicRelay:  s.MusicRelay,
		MicRelay:    s.MicRelay,
	}
}

func (s DeviceState) String() string {
	return fmt.Sprintf("music=%d mic=%d fader=%d musicRelay=%t micRelay=%t sensing=%t",
		s.MusicVolume, s.MicVolume, s.MainFader, s.MusicRelay, s.MicRelay, s.PowerSensing)
}

// Store owns the DeviceState. All access goes through its methods so a
// concurrent reader never observes a half-applied mutation.
type Store struct {
	mu  sync.Mutex
	s   DeviceState
	log *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{s: Defaults(), log: logger}
}

// Snapshot returns a copy of the current state.
func (st *Store) Snapshot() DeviceState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Encode returns the wire line for the current state.
func (st *Store) Encode() []byte {
	return protocol.Encode(st.Snapshot().Frame())
}

// Update runs f on the state under the lock and marks it dirty.
func (st *Store) Update(f func(s *DeviceState)) DeviceState {
	st.mu.Lock()
	defer st.mu.Unlock()
	f(&st.s)
	st.s.Dirty = true
	return st.s
}

func (st *Store) SetMusicVolume(v int) DeviceState {
	return st.Update(func(s *DeviceState) { s.MusicVolume = mathx.Percent(v) })
}

func (st *Store) SetMicVolume(v int) DeviceState {
	return st.Update(func(s *DeviceState) { s.MicVolume = mathx.Percent(v) })
}

func (st *Store) SetMainFader(v int) DeviceState {
	return st.Update(func(s *DeviceState) { s.MainFader = mathx.Percent(v) })
}

func (st *Store) SetMusicRelay(on bool) DeviceState {
	return st.Update(func(s *DeviceState) { s.MusicRelay = on })
}

func (st *Store) SetMicRelay(on bool) DeviceState {
	return st.Update(func(s *DeviceState) { s.MicRelay = on })
}

func (st *Store) ToggleMusicRelay() DeviceState {
	return st.Update(func(s *DeviceState) { s.MusicRelay = !s.MusicRelay })
}

func (st *Store) ToggleMicRelay() DeviceState {
	return st.Update(func(s *DeviceState) { s.MicRelay = !s.MicRelay })
}

func (st *Store) SetPowerSensing(on bool) DeviceState {
	return st.Update(func(s *DeviceState) { s.PowerSensing = on })
}

// Apply copies the present fields of a decoded update. Received volumes are
// already fader-scaled, so they are stored with the fader left as is.
func (st *Store) Apply(u protocol.Update) DeviceState {
	return st.Update(func(s *DeviceState) {
		if u.MusicVolume != nil {
			s.MusicVolume = *u.MusicVolume
		}
		if u.MicVolume != nil {
			s.MicVolume = *u.MicVolume
		}
		if u.MusicRelay != nil {
			s.MusicRelay = *u.MusicRelay
		}
		if u.MicRelay != nil {
			s.MicRelay = *u.MicRelay
		}
	})
}

// Load replaces the state with the values in kv, substituting defaults for
// anything missing or unreadable. It never fails.
func (st *Store) Load(kv nvs.Store) {
	d := Defaults()
	s := DeviceState{
		MusicVolume:  st.getInt(kv, KEY_MUSIC_VOLUME, d.MusicVolume),
		MicVolume:    st.getInt(kv, KEY_MIC_VOLUME, d.MicVolume),
		MainFader:    st.getInt(kv, KEY_MAIN_FADER, d.MainFader),
		MusicRelay:   st.getBool(kv, KEY_MUSIC_RELAY, d.MusicRelay),
		MicRelay:     st.getBool(kv, KEY_MIC_RELAY, d.MicRelay),
		PowerSensing: st.getBool(kv, KEY_POWER_SENSING, d.PowerSensing),
	}

	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
}

func (st *Store) getInt(kv nvs.Store, key string, def int) int {
	v, err := kv.GetInt(key)
	if err != nil {
		if !errors.Is(err, nvs.ErrNotFound) {
			st.log.Error("error reading setting", "key", key, "err", err)
		}
		return def
	}
	return mathx.Percent(v)
}

func (st *Store) getBool(kv nvs.Store, key string, def bool) bool {
	v, err := kv.GetBool(key)
	if err != nil {
		if !errors.Is(err, nvs.ErrNotFound) {
			st.log.Error("error reading setting", "key", key, "err", err)
		}
		return def
	}
	return v
}

// Save writes every field to kv. Dirty is cleared only when all writes
// succeed; a failed save leaves the state dirty so the next attempt retries.
// An interrupted save may leave kv holding a mix of old and new values.
func (st *Store) Save(kv nvs.Store) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.s
	for _, err := range []error{
		kv.PutInt(KEY_MUSIC_VOLUME, s.MusicVolume),
		kv.PutInt(KEY_MIC_VOLUME, s.MicVolume),
		kv.PutInt(KEY_MAIN_FADER, s.MainFader),
		kv.PutBool(KEY_MUSIC_RELAY, s.MusicRelay),
		kv.PutBool(KEY_MIC_RELAY, s.MicRelay),
		kv.PutBool(KEY_POWER_SENSING, s.PowerSensing),
	} {
		if err != nil {
			return err
		}
	}
	st.s.Dirty = false
	return nil
}
