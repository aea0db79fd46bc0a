package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"mixer-link/combo"
	"mixer-link/config"
	"mixer-link/control"
	"mixer-link/expander"
	"mixer-link/multiplexer"
	"mixer-link/panel"
	"mixer-link/rotary"
	"mixer-link/state"
)

// hardware is everything reached over I2C.
type hardware struct {
	bus      i2c.BusCloser
	mux      *multiplexer.Multiplexer
	expander *expander.CH422G
	panel    *panel.Panel
	knobs    []*combo.Combo
}

func needsI2C(cfg config.Config) bool {
	return cfg.ExpanderEnabled || cfg.PanelEnabled || len(cfg.Knobs) > 0
}

func openHardware(cfg config.Config, store *state.Store, logger *slog.Logger) (*hardware, error) {
	hw := &hardware{}
	if !needsI2C(cfg) {
		return hw, nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("opening i2c bus %q: %w", cfg.I2CBus, err)
	}
	hw.bus = bus
	if cfg.MuxAddress != 0 {
		hw.mux = multiplexer.NewMultiplexer(bus, cfg.MuxAddress)
	}

	if cfg.ExpanderEnabled {
		ex := expander.New(bus)
		if err := ex.Configure(); err != nil {
			// The power monitor treats failed reads as skips, so keep going.
			logger.Error("error configuring expander", "err", err)
		}
		hw.expander = ex
	}

	if cfg.PanelEnabled {
		p, err := panel.Open(hw.port(cfg.PanelMux), logger)
		if err != nil {
			logger.Error("error opening panel", "err", err)
		} else {
			hw.panel = p
		}
	}

	for i, k := range cfg.Knobs {
		target, ok := combo.ParseTarget(k.Target)
		if !ok {
			logger.Warn("unknown knob target, skipping", "knob", i, "target", k.Target)
			continue
		}
		enc := rotary.NewEncoder(hw.port(k.Mux), k.Address)
		if err := enc.ResetCounter(); err != nil {
			logger.Warn("error resetting knob counter", "knob", i, "err", err)
		}
		hw.knobs = append(hw.knobs, combo.NewCombo(enc, target, knobValue(store, target)))
		logger.Info("knob ready", "knob", i, "target", target.String(), "address", fmt.Sprintf("0x%02X", k.Address))
	}
	return hw, nil
}

// port returns the bus a device on mux channel ch is reached through.
func (hw *hardware) port(ch int) i2c.Bus {
	if ch == config.NO_MUX || hw.mux == nil {
		return hw.bus
	}
	return hw.mux.Port(uint8(ch))
}

func (hw *hardware) Close() error {
	var errs []error
	if hw.panel != nil {
		errs = append(errs, hw.panel.Close())
	}
	if hw.expander != nil {
		errs = append(errs, hw.expander.SetBacklight(false))
	}
	if hw.bus != nil {
		errs = append(errs, hw.bus.Close())
	}
	return errors.Join(errs...)
}

func knobValue(store *state.Store, target combo.Target) func() int {
	return func() int {
		s := store.Snapshot()
		switch target {
		case combo.TARGET_MUSIC:
			return s.MusicVolume
		case combo.TARGET_MIC:
			return s.MicVolume
		default:
			return s.MainFader
		}
	}
}

// pollKnobs reads every knob once and dispatches what they produced.
func pollKnobs(knobs []*combo.Combo, d *control.Dispatcher, logger *slog.Logger) func(now time.Time) {
	return func(now time.Time) {
		for _, k := range knobs {
			cmds, err := k.Update(now)
			if err != nil {
				logger.Debug("error reading knob", "target", k.Target().String(), "err", err)
				continue
			}
			for _, cmd := range cmds {
				if err := d.Dispatch(cmd, now); err != nil {
					logger.Debug("knob command rejected", "cmd", cmd.String(), "err", err)
				}
			}
		}
	}
}

// backlight puts the expander's backlight line behind the View interface so
// the power monitor can drive it along with the screens.
type backlight struct {
	ex  *expander.CH422G
	log *slog.Logger
}

func (b backlight) SetSlider(control.Channel, int) {}
func (b backlight) Sync(state.DeviceState) {}
func (b backlight) ShowWaking() {}

func (b backlight) Backlight(on bool) {
	if err := b.ex.SetBacklight(on); err != nil {
		b.log.Warn("error switching backlight", "on", on, "err", err)
	}
}
