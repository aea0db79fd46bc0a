package combo

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mixer-link/control"
	"mixer-link/rotary"
)

type scripted struct {
	reports []rotary.Report
	err     error
}

func (s *scripted) Read() (rotary.Report, error) {
	if s.err != nil {
		return rotary.Report{}, s.err
	}
	r := s.reports[0]
	if len(s.reports) > 1 {
		s.reports = s.reports[1:]
	}
	return r, nil
}

func TestFirstReadOnlyPrimes(t *testing.T) {
	enc := &scripted{reports: []rotary.Report{{Count: 57}}}
	c := NewCombo(enc, TARGET_MUSIC, func() int { return 50 })

	cmds, err := c.Update(time.Unix(0, 0))
	require.NoError(t, err)
	require.Empty(t, cmds)
}

func TestSlowTurnStepsByOne(t *testing.T) {
	level := 50
	enc := &scripted{reports: []rotary.Report{{Count: 0}, {Count: 2}, {Count: 1}}}
	c := NewCombo(enc, TARGET_MIC, func() int { return level })

	now := time.Unix(0, 0)
	c.Update(now)

	cmds, err := c.Update(now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, []control.Command{control.SetMicVolume(52)}, cmds)
	level = 52

	cmds, err = c.Update(now.Add(2 * time.Second))
	require.NoError(t, err)
	require.Equal(t, []control.Command{control.SetMicVolume(51)}, cmds)
}

func TestFastTurnAccelerates(t *testing.T) {
	enc := &scripted{reports: []rotary.Report{{Count: 0}, {Count: 1}, {Count: 2}, {Count: 3}}}
	c := NewCombo(enc, TARGET_FADER, func() int { return 10 })

	now := time.Unix(0, 0)
	c.Update(now)
	var got []control.Command
	for i := 1; i <= 3; i++ {
		cmds, err := c.Update(now.Add(time.Duration(i) * 10 * time.Millisecond))
		require.NoError(t, err)
		got = append(got, cmds...)
	}
	// steps 1 (0.8), 2 (1.6), 2 (2.4)
	require.Equal(t, []control.Command{
		control.SetMainFader(11),
		control.SetMainFader(12),
		control.SetMainFader(12),
	}, got)
}

func TestTurnClampsAtEdges(t *testing.T) {
	enc := &scripted{reports: []rotary.Report{{Count: 0}, {Count: -5}}}
	c := NewCombo(enc, TARGET_MUSIC, func() int { return 2 })
	now := time.Unix(0, 0)
	c.Update(now)
	cmds, err := c.Update(now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, []control.Command{control.SetMusicVolume(0)}, cmds)
}

func TestClickTogglesRelay(t *testing.T) {
	enc := &scripted{reports: []rotary.Report{{State: rotary.BtnClick}}}
	music := NewCombo(enc, TARGET_MUSIC, func() int { return 0 })
	cmds, err := music.Update(time.Unix(0, 0))
	require.NoError(t, err)
	require.Equal(t, []control.Command{control.ToggleMusicRelay()}, cmds)

	mic := NewCombo(enc, TARGET_MIC, func() int { return 0 })
	cmds, _ = mic.Update(time.Unix(0, 0))
	require.Equal(t, []control.Command{control.ToggleMicRelay()}, cmds)

	fader := NewCombo(enc, TARGET_FADER, func() int { return 0 })
	cmds, _ = fader.Update(time.Unix(0, 0))
	require.Empty(t, cmds)
}

func TestReadErrorPropagates(t *testing.T) {
	c := NewCombo(&scripted{err: errors.New("gone")}, TARGET_MIC, func() int { return 0 })
	_, err := c.Update(time.Unix(0, 0))
	require.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	tg, ok := ParseTarget("fader")
	require.True(t, ok)
	require.Equal(t, TARGET_FADER, tg)
	_, ok = ParseTarget("aux")
	require.False(t, ok)
}
