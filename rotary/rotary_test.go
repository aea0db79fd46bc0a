package rotary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	report []byte
	writes [][]byte
	err    error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if b.err != nil {
		return b.err
	}
	if len(w) > 0 {
		b.writes = append(b.writes, append([]byte(nil), w...))
	}
	copy(r, b.report)
	return nil
}

func TestRead(t *testing.T) {
	bus := &fakeBus{report: []byte{0x2C, 0x01, 0x00, 0x00, byte(BtnDoubleClick)}}
	e := NewEncoder(bus, 0x30)

	r, err := e.Read()
	require.NoError(t, err)
	require.Equal(t, Report{Count: 300, State: BtnDoubleClick}, r)

	bus.report = []byte{0xFE, 0xFF, 0xFF, 0xFF, byte(RotaryCCW)}
	r, err = e.Read()
	require.NoError(t, err)
	require.Equal(t, int32(-2), r.Count)
	require.Equal(t, "Counter Clockwise", r.State.String())
}

func TestReadError(t *testing.T) {
	e := NewEncoder(&fakeBus{err: errors.New("nack")}, 0x31)
	_, err := e.Read()
	require.ErrorContains(t, err, "0x31")
}

func TestResetCounter(t *testing.T) {
	bus := &fakeBus{}
	require.NoError(t, NewEncoder(bus, 0x30).ResetCounter())
	require.Equal(t, [][]byte{{RESET_FLAG}}, bus.writes)
}
