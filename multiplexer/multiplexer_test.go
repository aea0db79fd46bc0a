package multiplexer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

type tx struct {
	addr uint16
	w    []byte
}

type fakeBus struct {
	txs []tx
	err error
}

func (b *fakeBus) String() string { return "fake" }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.txs = append(b.txs, tx{addr, append([]byte(nil), w...)})
	return b.err
}

func (b *fakeBus) SetSpeed(physic.Frequency) error { return nil }

func TestPortSelectsChannelOnce(t *testing.T) {
	bus := &fakeBus{}
	mux := NewMultiplexer(bus, DEFAULT_ADDR)
	p2, p5 := mux.Port(2), mux.Port(5)

	require.NoError(t, p2.Tx(0x3C, []byte{0x00}, nil))
	require.NoError(t, p2.Tx(0x3C, []byte{0x01}, nil))
	require.NoError(t, p5.Tx(0x3C, []byte{0x02}, nil))

	require.Equal(t, []tx{
		{DEFAULT_ADDR, []byte{1 << 2}},
		{0x3C, []byte{0x00}},
		{0x3C, []byte{0x01}},
		{DEFAULT_ADDR, []byte{1 << 5}},
		{0x3C, []byte{0x02}},
	}, bus.txs)
	require.Equal(t, "fake/mux5", p5.String())
}

func TestSelectFailureForcesReselect(t *testing.T) {
	bus := &fakeBus{err: errors.New("nack")}
	mux := NewMultiplexer(bus, DEFAULT_ADDR)
	require.Error(t, mux.Select(1))

	bus.err = nil
	require.NoError(t, mux.Select(1))
	require.Len(t, bus.txs, 2)
}

func TestSelectOutOfRange(t *testing.T) {
	require.Error(t, NewMultiplexer(&fakeBus{}, DEFAULT_ADDR).Select(8))
}
