// mixer-scan checks for the hardware a mixer setup needs: devices on the I2C
// bus (optionally behind a TCA9548A), serial ports and USB devices.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/dikkadev/prettyslog"
	"github.com/karalabe/usb"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"mixer-link/multiplexer"
	"mixer-link/pkg/reliableserial"
)

const (
	FIRST_ADDR = 0x08
	LAST_ADDR  = 0x77
)

// scan returns the addresses on bus that acknowledge a one-byte write.
// skip is left out so the mux never reports itself on every channel.
func scan(bus i2c.Bus, skip uint16) []uint16 {
	var found []uint16
	for addr := uint16(FIRST_ADDR); addr <= LAST_ADDR; addr++ {
		if addr == skip {
			continue
		}
		if bus.Tx(addr, []byte{0x00}, nil) == nil {
			found = append(found, addr)
		}
	}
	return found
}

func scanI2C(name string, muxAddr uint16) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return fmt.Errorf("opening i2c bus: %w", err)
	}
	defer bus.Close()

	slog.Info("scanning i2c bus", "bus", bus.String())
	for _, addr := range scan(bus, 0) {
		slog.Info("found device", "address", fmt.Sprintf("0x%02X", addr))
	}
	if muxAddr == 0 {
		return nil
	}

	mux := multiplexer.NewMultiplexer(bus, muxAddr)
	for channel := uint8(0); channel < multiplexer.CHANNELS; channel++ {
		port := mux.Port(channel)
		for _, addr := range scan(port, muxAddr) {
			slog.Info("found device", "channel", channel, "address", fmt.Sprintf("0x%02X", addr))
		}
	}
	return nil
}

func listSerial() error {
	ports, err := reliableserial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		slog.Info("no serial ports found")
	}
	for _, p := range ports {
		slog.Info("serial port", "name", p.Name, "usb", p.IsUSB, "vid", p.VID, "pid", p.PID, "product", p.Product, "serial", p.SerialNumber)
	}
	return nil
}

func listUSB() error {
	if !usb.Supported() {
		slog.Warn("usb enumeration not supported on this platform")
		return nil
	}
	devices, err := usb.Enumerate(0, 0)
	if err != nil {
		return fmt.Errorf("enumerating usb: %w", err)
	}
	for _, d := range devices {
		slog.Info("usb device",
			"vid", fmt.Sprintf("%04X", d.VendorID),
			"pid", fmt.Sprintf("%04X", d.ProductID),
			"manufacturer", d.Manufacturer,
			"product", d.Product,
			"serial", d.Serial,
			"path", d.Path,
		)
	}
	return nil
}

func main() {
	logger := slog.New(prettyslog.NewPrettyslogHandler("scan",
		prettyslog.WithLevel(slog.LevelDebug),
	))
	slog.SetDefault(logger)

	busName := flag.String("bus", "", "I2C bus name (empty for the first one)")
	muxAddr := flag.Uint("mux", 0, "TCA9548A address to scan behind, e.g. 0x70 (0 to skip)")
	noI2C := flag.Bool("no-i2c", false, "Skip the I2C scan")
	watch := flag.Duration("watch", 0, "Repeat the scan at this interval")
	flag.Parse()

	if *muxAddr > 0x7F {
		log.Fatalf("Invalid mux address 0x%X", *muxAddr)
	}

	for {
		if !*noI2C {
			if err := scanI2C(*busName, uint16(*muxAddr)); err != nil {
				slog.Error("i2c scan failed", "err", err)
			}
		}
		if err := listSerial(); err != nil {
			slog.Error("serial listing failed", "err", err)
		}
		if err := listUSB(); err != nil {
			slog.Error("usb listing failed", "err", err)
		}

		if *watch <= 0 {
			return
		}
		time.Sleep(*watch)
	}
}
