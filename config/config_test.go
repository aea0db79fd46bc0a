package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
role: body
portName: /dev/ttyUSB0
logLevel: debug
relayPins:
  music: GPIO17
  mic: GPIO27
attenuatorPins:
  music: {data: GPIO5, clk: GPIO6}
  mic: {data: GPIO13, clk: GPIO19}
failsafeTimeout: 4s
knobs:
  - {mux: 2, address: 0x40, target: music}
muxAddress: 0x70
`

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	require.Equal(t, ROLE_BODY, c.Role)
	require.Equal(t, 115200, c.BaudRate)
	require.Equal(t, "mixer-app", c.Namespace)
	require.Equal(t, "GPIO27", c.RelayPins.Mic)
	require.Equal(t, PinPair{Data: "GPIO13", Clock: "GPIO19"}, c.AttenuatorPins.Mic)
	require.Equal(t, 4*time.Second, c.FailsafeTimeout)
	require.Equal(t, NO_MUX, c.PanelMux)
	require.Equal(t, []KnobConfig{{Mux: 2, Address: 0x40, Target: "music"}}, c.Knobs)

	l, err := c.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, l)
}

func TestValidate(t *testing.T) {
	base := Default()
	base.PortName = "COM3"
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"role":     func(c *Config) { c.Role = "mixer" },
		"port":     func(c *Config) { c.PortName = "" },
		"baud":     func(c *Config) { c.BaudRate = 0 },
		"level":    func(c *Config) { c.LogLevel = "loud" },
		"debounce": func(c *Config) { c.Debounce = "average" },
		"backend":  func(c *Config) { c.AttenuatorBackend = "pwm" },
		"knob mux": func(c *Config) { c.Knobs = []KnobConfig{{Mux: 9}} },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		require.Error(t, c.Validate(), name)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestSplitMatch(t *testing.T) {
	c := Config{PortMatch: "10C4:EA60"}
	vid, pid := c.SplitMatch()
	require.Equal(t, "10C4", vid)
	require.Equal(t, "EA60", pid)

	c.PortMatch = "1A86"
	vid, pid = c.SplitMatch()
	require.Equal(t, "1A86", vid)
	require.Empty(t, pid)
}

func TestReloaderAppliesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	initial, err := Load(path)
	require.NoError(t, err)
	r := NewReloader(path, initial, nil)

	var seen []string
	r.OnChange(func(old, new Config) { seen = append(seen, old.LogLevel+"->"+new.LogLevel) })

	require.False(t, r.Reload())

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(sample, "logLevel: debug", "logLevel: warn", 1)), 0o644))
	require.True(t, r.Reload())
	require.Equal(t, []string{"debug->warn"}, seen)
	require.Equal(t, "warn", r.Current().LogLevel)

	require.NoError(t, os.WriteFile(path, []byte("role: [broken"), 0o644))
	require.False(t, r.Reload())
	require.Equal(t, "warn", r.Current().LogLevel)
}

func TestReloaderKeepsStartupOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	initial, err := Load(path)
	require.NoError(t, err)
	initial.Role = ROLE_CONTROLLER
	r := NewReloader(path, initial, nil)

	require.False(t, r.Reload())
	require.Equal(t, ROLE_CONTROLLER, r.Current().Role)

	unnamed := strings.Replace(sample, "portName: /dev/ttyUSB0\n", "portMatch: 10C4\n", 1)
	require.NoError(t, os.WriteFile(path, []byte(unnamed), 0o644))
	require.True(t, r.Reload())
	require.Equal(t, "/dev/ttyUSB0", r.Current().PortName)
	require.Equal(t, ROLE_CONTROLLER, r.Current().Role)
}
