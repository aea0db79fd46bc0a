package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mixer-link/combo"
	"mixer-link/control"
	"mixer-link/rotary"
	"mixer-link/state"
)

type sender struct{ sent int }

func (s *sender) SendState() error {
	s.sent++
	return nil
}

type turns []rotary.Report

func (t *turns) Read() (rotary.Report, error) {
	r := (*t)[0]
	if len(*t) > 1 {
		*t = (*t)[1:]
	}
	return r, nil
}

func TestKnobsDriveDispatcher(t *testing.T) {
	store := state.NewStore(nil)
	out := &sender{}
	d := control.NewDispatcher(store, out, nil, nil)

	enc := &turns{{Count: 10}, {Count: 13}}
	knob := combo.NewCombo(enc, combo.TARGET_MUSIC, knobValue(store, combo.TARGET_MUSIC))
	poll := pollKnobs([]*combo.Combo{knob}, d, slog.Default())

	now := time.Unix(100, 0)
	poll(now)
	require.Equal(t, 80, store.Snapshot().MusicVolume)
	require.Zero(t, out.sent)

	poll(now.Add(time.Second))
	require.Equal(t, 83, store.Snapshot().MusicVolume)
	require.Equal(t, 1, out.sent)
}

func TestKnobValueFollowsTarget(t *testing.T) {
	store := state.NewStore(nil)
	store.SetMainFader(42)
	require.Equal(t, 42, knobValue(store, combo.TARGET_FADER)())
	require.Equal(t, 50, knobValue(store, combo.TARGET_MIC)())
}
