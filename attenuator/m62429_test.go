package attenuator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

type edge struct {
	pin   string
	level gpio.Level
}

type bus struct {
	edges []edge
}

type recPin struct {
	name string
	bus  *bus
	err  error
}

func (p *recPin) Out(l gpio.Level) error {
	if p.err != nil {
		return p.err
	}
	p.bus.edges = append(p.bus.edges, edge{p.name, l})
	return nil
}

func newChip() (*M62429, *bus, *recPin) {
	b := &bus{}
	data := &recPin{name: "data", bus: b}
	clk := &recPin{name: "clk", bus: b}
	m := NewM62429(data, clk)
	m.delay = func(time.Duration) {}
	return m, b, data
}

func TestAttenuation(t *testing.T) {
	require.Equal(t, uint8(ATT_MUTE), Attenuation(0))
	require.Equal(t, uint8(ATT_MUTE), Attenuation(-5))
	require.Equal(t, uint8(83), Attenuation(1))
	require.Equal(t, uint8(42), Attenuation(50))
	require.Equal(t, uint8(0), Attenuation(100))
	require.Equal(t, uint8(0), Attenuation(150))
}

func TestFrame(t *testing.T) {
	// att 83 = 0b1010011
	f := Frame(83, CHANNEL_BOTH)
	require.Len(t, f, FRAME_BITS)
	require.Equal(t, []bool{
		true, true,
		true, true, false, false, true, false, true,
		true, true,
	}, f)

	require.Equal(t, []bool{false, true}, Frame(0, CHANNEL_2)[:2])
}

// sampled returns the data level at every rising clock edge.
func sampled(edges []edge) []bool {
	var data gpio.Level
	var bits []bool
	for _, e := range edges {
		switch e.pin {
		case "data":
			data = e.level
		case "clk":
			if e.level == gpio.High {
				bits = append(bits, bool(data))
			}
		}
	}
	return bits
}

func TestSetVolumeClocksFrameThenLatch(t *testing.T) {
	m, b, _ := newChip()
	require.NoError(t, m.SetVolume(50))

	require.Equal(t, Frame(42, CHANNEL_BOTH), sampled(b.edges))

	n := len(b.edges)
	require.Equal(t, []edge{
		{"data", gpio.High},
		{"clk", gpio.Low},
		{"data", gpio.Low},
	}, b.edges[n-3:])
}

func TestInitDrivesLinesLow(t *testing.T) {
	m, b, _ := newChip()
	require.NoError(t, m.Init())
	require.Equal(t, []edge{{"data", gpio.Low}, {"clk", gpio.Low}}, b.edges)
}

func TestPinErrorsPropagate(t *testing.T) {
	m, _, data := newChip()
	data.err = errors.New("gpio busy")
	require.ErrorIs(t, m.SetVolume(10), data.err)
}

func TestNop(t *testing.T) {
	var a Attenuator = Nop{}
	require.NoError(t, a.SetVolume(10))
}
