// Package attenuator drives the volume stage of a mixer channel.
package attenuator

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"mixer-link/internal/mathx"
)

// Attenuator sets a channel's volume as a percentage.
type Attenuator interface {
	SetVolume(percent int) error
}

// Nop discards volume changes, for bodies without a volume stage.
type Nop struct{}

func (Nop) SetVolume(int) error { return nil }

const (
	// ATT_MUTE is the attenuation written for volume 0.
	ATT_MUTE = 83

	CHANNEL_1    = 0b00
	CHANNEL_2    = 0b01
	CHANNEL_BOTH = 0b11

	FRAME_BITS = 11
)

// Attenuation maps a volume percentage to the chip's attenuation step:
// 0 mutes, 1..100 runs linearly from 83 down to 0.
func Attenuation(percent int) uint8 {
	if percent <= 0 {
		return ATT_MUTE
	}
	return uint8(mathx.Map(percent, 1, 100, ATT_MUTE, 0))
}

// Frame returns the bits clocked out for one write, in order: two channel
// select bits and seven attenuation bits, each LSB first, then two ones.
func Frame(att, channel uint8) []bool {
	bits := make([]bool, 0, FRAME_BITS)
	for i := 0; i < 2; i++ {
		bits = append(bits, (channel>>i)&1 == 1)
	}
	for i := 0; i < 7; i++ {
		bits = append(bits, (att>>i)&1 == 1)
	}
	return append(bits, true, true)
}

// Line is the part of gpio.PinOut the driver needs.
type Line interface {
	Out(l gpio.Level) error
}

// M62429 bit-bangs the two-wire serial interface of the M62429 volume
// controller.
type M62429 struct {
	Data, Clock Line
	Channel     uint8

	mu    sync.Mutex
	delay func(time.Duration)
}

func NewM62429(data, clock Line) *M62429 {
	return &M62429{Data: data, Clock: clock, Channel: CHANNEL_BOTH, delay: time.Sleep}
}

// Init drives both lines low.
func (m *M62429) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Data.Out(gpio.Low); err != nil {
		return fmt.Errorf("m62429 data: %w", err)
	}
	if err := m.Clock.Out(gpio.Low); err != nil {
		return fmt.Errorf("m62429 clock: %w", err)
	}
	return nil
}

func (m *M62429) SetVolume(percent int) error {
	return m.write(Frame(Attenuation(percent), m.Channel))
}

func (m *M62429) write(frame []bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range frame {
		if err := m.writeBit(b); err != nil {
			return err
		}
	}

	// latch
	if err := m.Data.Out(gpio.High); err != nil {
		return fmt.Errorf("m62429 latch: %w", err)
	}
	if err := m.Clock.Out(gpio.Low); err != nil {
		return fmt.Errorf("m62429 latch: %w", err)
	}
	m.delay(4 * time.Microsecond)
	if err := m.Data.Out(gpio.Low); err != nil {
		return fmt.Errorf("m62429 latch: %w", err)
	}
	m.delay(4 * time.Microsecond)
	return nil
}

func (m *M62429) writeBit(b bool) error {
	if err := m.Data.Out(gpio.Level(b)); err != nil {
		return fmt.Errorf("m62429 data: %w", err)
	}
	m.delay(2 * time.Microsecond)
	if err := m.Clock.Out(gpio.High); err != nil {
		return fmt.Errorf("m62429 clock: %w", err)
	}
	m.delay(4 * time.Microsecond)
	if err := m.Clock.Out(gpio.Low); err != nil {
		return fmt.Errorf("m62429 clock: %w", err)
	}
	m.delay(2 * time.Microsecond)
	return nil
}
