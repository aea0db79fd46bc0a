// Package config loads the yaml configuration shared by the controller and
// body binaries.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	ROLE_CONTROLLER = "controller"
	ROLE_BODY       = "body"

	BACKEND_M62429 = "m62429"
	BACKEND_WCA    = "wca"
	BACKEND_NONE   = "none"

	// NO_MUX marks a device wired straight to the bus.
	NO_MUX = -1
)

type PinPair struct {
	Data  string `yaml:"data"`
	Clock string `yaml:"clk"`
}

type RelayPins struct {
	Music string `yaml:"music"`
	Mic   string `yaml:"mic"`
}

type AttenuatorPins struct {
	Music PinPair `yaml:"music"`
	Mic   PinPair `yaml:"mic"`
}

type WCADevices struct {
	Music string `yaml:"music"`
	Mic   string `yaml:"mic"`
}

// KnobConfig binds one rotary encoder module to the value it adjusts.
type KnobConfig struct {
	Mux     int    `yaml:"mux"`
	Address uint16 `yaml:"address"`
	Target  string `yaml:"target"`
}

type Config struct {
	Role      string `yaml:"role"`
	PortName  string `yaml:"portName"`
	PortMatch string `yaml:"portMatch"`
	BaudRate  int    `yaml:"baudRate"`
	LogLevel  string `yaml:"logLevel"`

	StorePath string `yaml:"storePath"`
	Namespace string `yaml:"namespace"`

	I2CBus          string       `yaml:"i2cBus"`
	ExpanderEnabled bool         `yaml:"expanderEnabled"`
	MuxAddress      uint16       `yaml:"muxAddress"`
	PanelEnabled    bool         `yaml:"panelEnabled"`
	PanelMux        int          `yaml:"panelMux"`
	Knobs           []KnobConfig `yaml:"knobs"`

	RemoteAddr string `yaml:"remoteAddr"`

	Debounce         string `yaml:"debounce"`
	CounterThreshold int    `yaml:"counterThreshold"`

	RelayPins         RelayPins      `yaml:"relayPins"`
	AttenuatorPins    AttenuatorPins `yaml:"attenuatorPins"`
	AttenuatorBackend string         `yaml:"attenuatorBackend"`
	WCADevices        WCADevices     `yaml:"wcaDevices"`
	FailsafeTimeout   time.Duration  `yaml:"failsafeTimeout"`

	ConfigReloadPeriod time.Duration `yaml:"configReloadPeriod"`
}

func Default() Config {
	return Config{
		Role:               ROLE_CONTROLLER,
		BaudRate:           115200,
		LogLevel:           "info",
		StorePath:          "mixer.db",
		Namespace:          "mixer-app",
		MuxAddress:         0,
		PanelMux:           NO_MUX,
		RemoteAddr:         ":8080",
		Debounce:           "confirm",
		CounterThreshold:   2,
		AttenuatorBackend:  BACKEND_M62429,
		FailsafeTimeout:    6 * time.Second,
		ConfigReloadPeriod: 30 * time.Second,
	}
}

// Parse decodes data over the defaults.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	return c, nil
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	switch c.Role {
	case ROLE_CONTROLLER, ROLE_BODY:
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.PortName == "" && c.PortMatch == "" {
		return fmt.Errorf("no serial port: set portName or portMatch")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Debounce {
	case "", "confirm", "counter":
	default:
		return fmt.Errorf("unknown debounce strategy %q", c.Debounce)
	}
	switch c.AttenuatorBackend {
	case BACKEND_M62429, BACKEND_WCA, BACKEND_NONE:
	default:
		return fmt.Errorf("unknown attenuator backend %q", c.AttenuatorBackend)
	}
	for i, k := range c.Knobs {
		if k.Mux < NO_MUX || k.Mux > 7 {
			return fmt.Errorf("knob %d: mux channel %d out of range", i, k.Mux)
		}
	}
	if c.ConfigReloadPeriod < 0 || c.FailsafeTimeout < 0 {
		return fmt.Errorf("negative period")
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// SplitMatch splits portMatch "VID:PID" (PID optional).
func (c Config) SplitMatch() (vid, pid string) {
	vid, pid, _ = strings.Cut(c.PortMatch, ":")
	return vid, pid
}
