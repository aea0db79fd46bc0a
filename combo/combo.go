// Package combo binds a rotary encoder to one mixer control and turns its
// movement and clicks into commands.
package combo

import (
	"math"
	"time"

	"mixer-link/control"
	"mixer-link/internal/mathx"
	"mixer-link/rotary"
)

type Target uint8

const (
	TARGET_MUSIC Target = iota
	TARGET_MIC
	TARGET_FADER
)

func (t Target) String() string {
	switch t {
	case TARGET_MUSIC:
		return "music"
	case TARGET_MIC:
		return "mic"
	case TARGET_FADER:
		return "fader"
	default:
		return "unknown"
	}
}

func ParseTarget(s string) (Target, bool) {
	for _, t := range []Target{TARGET_MUSIC, TARGET_MIC, TARGET_FADER} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

const (
	STEP_INCREASE = .8
	MAX_STEP      = 8
	// FAST_TURN is the gap between detents under which steps accelerate.
	FAST_TURN = 60 * time.Millisecond
)

type Reader interface {
	Read() (rotary.Report, error)
}

// Combo tracks one encoder. Value returns the control's current level so the
// knob always moves relative to the shared state, however it last changed.
type Combo struct {
	encoder Reader
	target  Target
	value   func() int

	primed    bool
	lastCount int32
	lastTime  time.Time
	exactStep float64
}

func NewCombo(encoder Reader, target Target, value func() int) *Combo {
	return &Combo{
		encoder: encoder,
		target:  target,
		value:   value,
	}
}

func (c *Combo) Target() Target { return c.target }

// Update polls the encoder. It returns the commands produced since the last
// call: a click toggles the channel's relay, a turn sets a new level.
func (c *Combo) Update(now time.Time) ([]control.Command, error) {
	r, err := c.encoder.Read()
	if err != nil {
		return nil, err
	}

	var cmds []control.Command
	if r.State == rotary.BtnClick {
		switch c.target {
		case TARGET_MUSIC:
			cmds = append(cmds, control.ToggleMusicRelay())
		case TARGET_MIC:
			cmds = append(cmds, control.ToggleMicRelay())
		}
	}

	if !c.primed {
		c.primed = true
		c.lastCount = r.Count
		c.lastTime = now
		return cmds, nil
	}

	delta := r.Count - c.lastCount
	if delta == 0 {
		return cmds, nil
	}

	deltaTime := now.Sub(c.lastTime)
	c.lastTime = now
	c.lastCount = r.Count

	step := 1
	if deltaTime < FAST_TURN {
		newStep := c.exactStep + STEP_INCREASE
		step = mathx.Clamp(int(math.Round(newStep)), 1, MAX_STEP)
		c.exactStep = newStep
	} else {
		c.exactStep = 1
	}

	next := mathx.Percent(c.value() + int(delta)*step)
	switch c.target {
	case TARGET_MUSIC:
		cmds = append(cmds, control.SetMusicVolume(next))
	case TARGET_MIC:
		cmds = append(cmds, control.SetMicVolume(next))
	case TARGET_FADER:
		cmds = append(cmds, control.SetMainFader(next))
	}
	return cmds, nil
}
