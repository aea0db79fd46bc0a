package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"mixer-link/internal/mathx"
)

// Wire keys.
const (
	KEY_MUSIC_VOLUME = "mv"
	KEY_MIC_VOLUME   = "cv"
	KEY_MUSIC_RELAY  = "mr"
	KEY_MIC_RELAY    = "cr"
	KEY_POWER        = "pwr"
)

const (
	DELIMITER byte = '\n'
	QUERY          = "?"
	CMD_GET        = "get"
)

var ErrEmptyLine = errors.New("empty line")

// DecodeError is returned for any line that is not a usable state message.
// Nothing is applied when it is returned.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errNoKnownKeys = errors.New("no recognized keys")

// Message is the flat key-value object exchanged between the controller and
// the mixer body. Nil fields are absent on the wire.
type Message struct {
	MusicVolume *int    `json:"mv,omitempty"`
	MicVolume   *int    `json:"cv,omitempty"`
	MusicRelay  *int    `json:"mr,omitempty"`
	MicRelay    *int    `json:"cr,omitempty"`
	Power       *int    `json:"pwr,omitempty"`
	Cmd         *string `json:"cmd,omitempty"`
}

// Update is the decoded, partial view of a Message. Absent keys stay nil and
// must leave the receiver's corresponding field unchanged.
type Update struct {
	MusicVolume *int
	MicVolume   *int
	MusicRelay  *bool
	MicRelay    *bool
	Shutdown    bool
}

func (u Update) Empty() bool {
	return u.MusicVolume == nil && u.MicVolume == nil && u.MusicRelay == nil && u.MicRelay == nil && !u.Shutdown
}

// Frame is the input to Encode: the stored volumes before fader scaling plus
// the relay selectors.
type Frame struct {
	MusicVolume int
	MicVolume   int
	MainFader   int
	MusicRelay  bool
	MicRelay    bool
}

// Effective scales a channel volume by the main fader percentage, truncating.
// Both inputs are clamped to [0,100] first.
func Effective(volume, fader int) int {
	return mathx.Percent(volume) * mathx.Percent(fader) / 100
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intp(v int) *int { return &v }

// Encode builds the full state line with all four keys and a trailing
// newline.
func Encode(f Frame) []byte {
	m := Message{
		MusicVolume: intp(Effective(f.MusicVolume, f.MainFader)),
		MicVolume:   intp(Effective(f.MicVolume, f.MainFader)),
		MusicRelay:  intp(bit(f.MusicRelay)),
		MicRelay:    intp(bit(f.MicRelay)),
	}
	return marshalLine(m)
}

// EncodeShutdown builds the explicit {"pwr":0} notice.
func EncodeShutdown() []byte {
	return marshalLine(Message{Power: intp(0)})
}

// EncodeQuery builds the bare state request.
func EncodeQuery() []byte {
	return []byte(QUERY + string(DELIMITER))
}

func marshalLine(m Message) []byte {
	// Message only holds ints and strings, Marshal cannot fail.
	b, _ := json.Marshal(m)
	return append(b, DELIMITER)
}

// IsQuery reports whether line asks the peer for its current state.
func IsQuery(line []byte) bool {
	line = bytes.TrimSpace(line)
	if string(line) == QUERY {
		return true
	}
	if len(line) == 0 || line[0] != '{' {
		return false
	}
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return false
	}
	return m.Cmd != nil && *m.Cmd == CMD_GET
}

// Decode parses one line into an Update. Relay values are true only when
// exactly 1. A pwr value of 0 marks a shutdown notice.
func Decode(line []byte) (Update, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Update{}, ErrEmptyLine
	}

	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Update{}, &DecodeError{Line: string(line), Err: err}
	}

	var u Update
	if m.MusicVolume != nil {
		u.MusicVolume = intp(mathx.Percent(*m.MusicVolume))
	}
	if m.MicVolume != nil {
		u.MicVolume = intp(mathx.Percent(*m.MicVolume))
	}
	if m.MusicRelay != nil {
		b := *m.MusicRelay == 1
		u.MusicRelay = &b
	}
	if m.MicRelay != nil {
		b := *m.MicRelay == 1
		u.MicRelay = &b
	}
	if m.Power != nil && *m.Power == 0 {
		u.Shutdown = true
	}

	if u.Empty() {
		return Update{}, &DecodeError{Line: string(line), Err: errNoKnownKeys}
	}
	return u, nil
}

func (u Update) String() string {
	var buf bytes.Buffer
	field := func(k, v string) {
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k + "=" + v)
	}
	if u.MusicVolume != nil {
		field(KEY_MUSIC_VOLUME, strconv.Itoa(*u.MusicVolume))
	}
	if u.MicVolume != nil {
		field(KEY_MIC_VOLUME, strconv.Itoa(*u.MicVolume))
	}
	if u.MusicRelay != nil {
		field(KEY_MUSIC_RELAY, strconv.FormatBool(*u.MusicRelay))
	}
	if u.MicRelay != nil {
		field(KEY_MIC_RELAY, strconv.FormatBool(*u.MicRelay))
	}
	if u.Shutdown {
		field(KEY_POWER, "0")
	}
	return buf.String()
}
