package control

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Channel uint8

const (
	CHANNEL_MUSIC Channel = iota
	CHANNEL_MIC
)

func (c Channel) String() string {
	switch c {
	case CHANNEL_MUSIC:
		return "music"
	case CHANNEL_MIC:
		return "mic"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

type CommandType uint8

const (
	CMD_SET_MUSIC_VOLUME CommandType = iota + 1
	CMD_SET_MIC_VOLUME
	CMD_SET_MAIN_FADER
	CMD_TOGGLE_MUSIC_RELAY
	CMD_TOGGLE_MIC_RELAY
	CMD_SET_POWER_SENSING
)

var commandNames = map[CommandType]string{
	CMD_SET_MUSIC_VOLUME:   "setMusicVolume",
	CMD_SET_MIC_VOLUME:     "setMicVolume",
	CMD_SET_MAIN_FADER:     "setMainFader",
	CMD_TOGGLE_MUSIC_RELAY: "toggleMusicRelay",
	CMD_TOGGLE_MIC_RELAY:   "toggleMicRelay",
	CMD_SET_POWER_SENSING:  "setPowerSensing",
}

func (t CommandType) String() string {
	if n, ok := commandNames[t]; ok {
		return n
	}
	return fmt.Sprintf("command(%d)", uint8(t))
}

// Command is one user intent. Value carries the volume for the volume and
// fader commands; Enabled carries the flag for SET_POWER_SENSING.
type Command struct {
	Type    CommandType
	Value   int
	Enabled bool
}

func SetMusicVolume(v int) Command { return Command{Type: CMD_SET_MUSIC_VOLUME, Value: v} }
func SetMicVolume(v int) Command { return Command{Type: CMD_SET_MIC_VOLUME, Value: v} }
func SetMainFader(v int) Command { return Command{Type: CMD_SET_MAIN_FADER, Value: v} }
func ToggleMusicRelay() Command { return Command{Type: CMD_TOGGLE_MUSIC_RELAY} }
func ToggleMicRelay() Command { return Command{Type: CMD_TOGGLE_MIC_RELAY} }
func SetPowerSensing(b bool) Command { return Command{Type: CMD_SET_POWER_SENSING, Enabled: b} }

func (c Command) String() string {
	switch c.Type {
	case CMD_SET_MUSIC_VOLUME, CMD_SET_MIC_VOLUME, CMD_SET_MAIN_FADER:
		return fmt.Sprintf("%s(%d)", c.Type, c.Value)
	case CMD_SET_POWER_SENSING:
		return fmt.Sprintf("%s(%t)", c.Type, c.Enabled)
	default:
		return c.Type.String()
	}
}

// wireCommand is the JSON shape accepted by ParseCommand, e.g.
// {"type":"setMusicVolume","value":40} or {"type":"setPowerSensing","enabled":false}.
type wireCommand struct {
	Type    string `json:"type"`
	Value   *int   `json:"value,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// ParseCommand decodes a JSON command. Type names are matched case-insensitively.
func ParseCommand(data []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(data, &w); err != nil {
		return Command{}, fmt.Errorf("parsing command: %w", err)
	}

	var t CommandType
	for ct, name := range commandNames {
		if strings.EqualFold(name, w.Type) {
			t = ct
			break
		}
	}
	if t == 0 {
		return Command{}, fmt.Errorf("unknown command type %q", w.Type)
	}

	cmd := Command{Type: t}
	switch t {
	case CMD_SET_MUSIC_VOLUME, CMD_SET_MIC_VOLUME, CMD_SET_MAIN_FADER:
		if w.Value == nil {
			return Command{}, fmt.Errorf("%s: missing value", t)
		}
		cmd.Value = *w.Value
	case CMD_SET_POWER_SENSING:
		if w.Enabled == nil {
			return Command{}, fmt.Errorf("%s: missing enabled", t)
		}
		cmd.Enabled = *w.Enabled
	}
	return cmd, nil
}

// MarshalJSON emits the same shape ParseCommand accepts.
func (c Command) MarshalJSON() ([]byte, error) {
	w := wireCommand{Type: c.Type.String()}
	switch c.Type {
	case CMD_SET_MUSIC_VOLUME, CMD_SET_MIC_VOLUME, CMD_SET_MAIN_FADER:
		w.Value = &c.Value
	case CMD_SET_POWER_SENSING:
		w.Enabled = &c.Enabled
	}
	return json.Marshal(w)
}
