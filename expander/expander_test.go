package expander

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type tx struct {
	addr uint16
	w    []byte
}

type fakeBus struct {
	txs   []tx
	input byte
	err   error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	b.txs = append(b.txs, tx{addr: addr, w: append([]byte(nil), w...)})
	if len(r) > 0 {
		r[0] = b.input
	}
	return nil
}

func TestConfigure(t *testing.T) {
	bus := &fakeBus{}
	c := New(bus)
	require.NoError(t, c.Configure())
	require.Equal(t, []tx{
		{addr: REG_MODE, w: []byte{MODE_IO_OE}},
		{addr: REG_IO_OUT, w: []byte{0xFF}},
	}, bus.txs)
}

func TestBacklightReadModifyWrite(t *testing.T) {
	bus := &fakeBus{}
	c := New(bus)

	require.NoError(t, c.SetBacklight(false))
	require.Equal(t, uint8(0xFB), c.Output())
	require.NoError(t, c.SetBacklight(true))
	require.Equal(t, uint8(0xFF), c.Output())

	require.Equal(t, tx{addr: REG_IO_OUT, w: []byte{0xFB}}, bus.txs[0])
	require.Equal(t, tx{addr: REG_IO_OUT, w: []byte{0xFF}}, bus.txs[1])
}

func TestBacklightFailureKeepsCachedOutput(t *testing.T) {
	bus := &fakeBus{err: errors.New("nack")}
	c := New(bus)
	require.Error(t, c.SetBacklight(false))
	require.Equal(t, uint8(0xFF), c.Output())
}

func TestSample(t *testing.T) {
	bus := &fakeBus{input: 0x01}
	c := New(bus)
	require.Equal(t, Ok(true), c.Read())

	bus.input = 0x20
	require.Equal(t, Ok(false), c.Read())
	require.Equal(t, Ok(true), c.SampleMask(IO_DI1))
	require.Equal(t, uint16(REG_IO_IN), bus.txs[0].addr)
}

func TestSampleReadFailure(t *testing.T) {
	c := New(&fakeBus{err: errors.New("bus stuck")})
	s := c.Read()
	require.False(t, s.OK)
	require.Equal(t, ReadFailed, s)
}
