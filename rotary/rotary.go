// Package rotary reads I2C rotary encoder modules that report a 32-bit
// position counter followed by a button state byte.
package rotary

import (
	"encoding/binary"
	"fmt"

	"tinygo.org/x/drivers"
)

type RotaryState byte

const (
	RotaryIdle     RotaryState = 0x00
	BtnClick       RotaryState = 0x01
	BtnDoubleClick RotaryState = 0x02
	BtnLongPress   RotaryState = 0x03
	BtnLongRelease RotaryState = 0x04
	RotaryCCW      RotaryState = 0x05
	RotaryCW       RotaryState = 0x06
)

const (
	REPORT_LEN = 5
	RESET_FLAG = 0xAA
)

func (r RotaryState) String() string {
	switch r {
	case RotaryIdle:
		return "Idle"
	case BtnClick:
		return "Click"
	case BtnDoubleClick:
		return "Double Click"
	case BtnLongPress:
		return "Long Press"
	case BtnLongRelease:
		return "Long Release"
	case RotaryCCW:
		return "Counter Clockwise"
	case RotaryCW:
		return "Clockwise"
	default:
		return "Unknown"
	}
}

// Report is one read of the module.
type Report struct {
	Count int32
	State RotaryState
}

type Encoder struct {
	bus     drivers.I2C
	address uint16
}

func NewEncoder(bus drivers.I2C, address uint16) *Encoder {
	return &Encoder{
		bus:     bus,
		address: address,
	}
}

// Read fetches the counter and button state in one transaction.
func (e *Encoder) Read() (Report, error) {
	buf := make([]byte, REPORT_LEN)
	if err := e.bus.Tx(e.address, nil, buf); err != nil {
		return Report{}, fmt.Errorf("encoder 0x%02X: %w", e.address, err)
	}
	return Report{
		Count: int32(binary.LittleEndian.Uint32(buf[:4])),
		State: RotaryState(buf[4]),
	}, nil
}

// ResetCounter resets the module's counter to zero.
func (e *Encoder) ResetCounter() error {
	return e.bus.Tx(e.address, []byte{RESET_FLAG}, nil)
}
