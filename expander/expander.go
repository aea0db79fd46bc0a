// Package expander drives the CH422G I/O expander found on the controller
// board. The chip has no slave address: each function register is addressed
// as if it were a device on the bus.
package expander

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// CH422G function registers, used as I2C addresses.
const (
	REG_MODE   = 0x24
	REG_OD_OUT = 0x23
	REG_IO_OUT = 0x38
	REG_IO_IN  = 0x26
)

const (
	MODE_IO_OE = 0x01 // IO0..IO7 as outputs
)

// IO pin masks.
const (
	IO_DI0       = 0x01 // isolated digital input 0, charger sense
	IO_TOUCH_RST = 0x02
	IO_BACKLIGHT = 0x04
	IO_LCD_RST   = 0x08
	IO_SD_CS     = 0x10
	IO_DI1       = 0x20
)

// Sample is one read of the input register. OK is false when the bus read
// failed; Bit is meaningless in that case.
type Sample struct {
	Bit bool
	OK  bool
}

func Ok(bit bool) Sample { return Sample{Bit: bit, OK: true} }

var ReadFailed = Sample{}

// CH422G serializes every bus transaction behind one mutex so a register
// read never interleaves with an output write from another goroutine.
type CH422G struct {
	bus drivers.I2C

	mu  sync.Mutex
	out uint8
}

// New takes any bus with a Tx method; periph.io's i2c.Bus satisfies it.
func New(bus drivers.I2C) *CH422G {
	return &CH422G{bus: bus, out: 0xFF}
}

// Configure enables push-pull outputs and drives every IO high, which keeps
// the LCD and touch controller out of reset with the backlight on.
func (c *CH422G) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.bus.Tx(REG_MODE, []byte{MODE_IO_OE}, nil); err != nil {
		return fmt.Errorf("ch422g mode: %w", err)
	}
	c.out = 0xFF
	if err := c.bus.Tx(REG_IO_OUT, []byte{c.out}, nil); err != nil {
		return fmt.Errorf("ch422g output: %w", err)
	}
	return nil
}

// ReadInputs returns the raw input register.
func (c *CH422G) ReadInputs() (uint8, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, 1)
	if err := c.bus.Tx(REG_IO_IN, nil, buf); err != nil {
		return 0, fmt.Errorf("ch422g input: %w", err)
	}
	return buf[0], nil
}

// Read samples DI0, the power-sense input.
func (c *CH422G) Read() Sample {
	return c.SampleMask(IO_DI0)
}

// SampleMask reads the input register and reports whether any bit in mask
// is set.
func (c *CH422G) SampleMask(mask uint8) Sample {
	v, err := c.ReadInputs()
	if err != nil {
		return ReadFailed
	}
	return Ok(v&mask != 0)
}

func (c *CH422G) SetBacklight(on bool) error {
	return c.setOutput(IO_BACKLIGHT, on)
}

func (c *CH422G) setOutput(mask uint8, high bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.out &^ mask
	if high {
		next |= mask
	}
	if err := c.bus.Tx(REG_IO_OUT, []byte{next}, nil); err != nil {
		return fmt.Errorf("ch422g output: %w", err)
	}
	c.out = next
	return nil
}

// Output returns the last value written to the output register.
func (c *CH422G) Output() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}
