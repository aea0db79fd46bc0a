// Package multiplexer drives a TCA9548A I2C switch so devices sharing an
// address can live on separate downstream channels.
package multiplexer

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	DEFAULT_ADDR = 0x70
	CHANNELS     = 8
)

// TCA9548A multiplexer
type Multiplexer struct {
	bus  i2c.Bus
	addr uint16

	mu       sync.Mutex
	selected int
}

func NewMultiplexer(bus i2c.Bus, addr uint16) *Multiplexer {
	return &Multiplexer{
		bus:      bus,
		addr:     addr,
		selected: -1,
	}
}

func (m *Multiplexer) Select(channel uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(channel)
}

func (m *Multiplexer) selectLocked(channel uint8) error {
	if channel >= CHANNELS {
		return fmt.Errorf("mux channel %d out of range", channel)
	}
	if m.selected == int(channel) {
		return nil
	}
	if err := m.bus.Tx(m.addr, []byte{1 << channel}, nil); err != nil {
		m.selected = -1
		return fmt.Errorf("selecting mux channel %d: %w", channel, err)
	}
	m.selected = int(channel)
	return nil
}

// Port returns a bus that reaches the devices behind channel. Every
// transaction selects the channel first; ports of one multiplexer never
// interleave.
func (m *Multiplexer) Port(channel uint8) *Port {
	return &Port{mux: m, channel: channel}
}

// Port implements i2c.Bus for one downstream channel.
type Port struct {
	mux     *Multiplexer
	channel uint8
}

var _ i2c.Bus = (*Port)(nil)

func (p *Port) String() string {
	return fmt.Sprintf("%s/mux%d", p.mux.bus, p.channel)
}

func (p *Port) Tx(addr uint16, w, r []byte) error {
	p.mux.mu.Lock()
	defer p.mux.mu.Unlock()

	if err := p.mux.selectLocked(p.channel); err != nil {
		return err
	}
	return p.mux.bus.Tx(addr, w, r)
}

func (p *Port) SetSpeed(f physic.Frequency) error {
	return p.mux.bus.SetSpeed(f)
}
