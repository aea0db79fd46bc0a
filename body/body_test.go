package body

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"mixer-link/protocol"
	"mixer-link/state"
)

type fakePin struct {
	levels []gpio.Level
}

func (p *fakePin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return nil
}

func (p *fakePin) last() gpio.Level { return p.levels[len(p.levels)-1] }

type fakeAtt struct {
	volumes []int
}

func (a *fakeAtt) SetVolume(v int) error {
	a.volumes = append(a.volumes, v)
	return nil
}

func (a *fakeAtt) last() int { return a.volumes[len(a.volumes)-1] }

type rig struct {
	body             *Body
	store            *state.Store
	musicPin, micPin *fakePin
	musicAtt, micAtt *fakeAtt
	clock            time.Time
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		store:    state.NewStore(nil),
		musicPin: &fakePin{},
		micPin:   &fakePin{},
		musicAtt: &fakeAtt{},
		micAtt:   &fakeAtt{},
		clock:    time.Unix(1000, 0),
	}
	r.body = New(r.store,
		Relays{Music: r.musicPin, Mic: r.micPin},
		Volumes{Music: r.musicAtt, Mic: r.micAtt},
		nil)
	r.body.Now = func() time.Time { return r.clock }
	require.NoError(t, r.body.Init(r.clock))
	return r
}

func (r *rig) receive(t *testing.T, line string) {
	t.Helper()
	u, err := protocol.Decode([]byte(line))
	require.NoError(t, err)
	r.body.Apply(u, r.store.Apply(u))
}

func TestInitFallsBackAndMutes(t *testing.T) {
	r := newRig(t)
	require.Equal(t, gpio.High, r.musicPin.last(), "line-in")
	require.Equal(t, gpio.Low, r.micPin.last(), "wired")
	require.Equal(t, 0, r.musicAtt.last())
	require.Equal(t, 0, r.micAtt.last())
}

func TestRelayPolarity(t *testing.T) {
	r := newRig(t)
	r.receive(t, `{"mv":40,"cv":25,"mr":1,"cr":1}`)

	require.Equal(t, gpio.Low, r.musicPin.last(), "bluetooth")
	require.Equal(t, gpio.High, r.micPin.last(), "wireless")
	require.Equal(t, 40, r.musicAtt.last())
	require.Equal(t, 25, r.micAtt.last())
}

func TestHeartbeatRepeatsDoNotRewriteHardware(t *testing.T) {
	r := newRig(t)
	r.receive(t, `{"mv":40,"cv":25,"mr":1,"cr":0}`)
	writes := len(r.musicAtt.volumes) + len(r.musicPin.levels)

	r.receive(t, `{"mv":40,"cv":25,"mr":1,"cr":0}`)
	require.Equal(t, writes, len(r.musicAtt.volumes)+len(r.musicPin.levels))

	r.receive(t, `{"cv":30}`)
	require.Equal(t, 30, r.micAtt.last())
	require.Len(t, r.musicAtt.volumes, 2)
}

func TestShutdownNoticeMutesAndFallsBack(t *testing.T) {
	r := newRig(t)
	r.receive(t, `{"mv":40,"cv":25,"mr":1,"cr":1}`)
	r.receive(t, `{"pwr":0}`)

	require.Equal(t, gpio.High, r.musicPin.last())
	require.Equal(t, gpio.Low, r.micPin.last())
	require.Equal(t, 0, r.musicAtt.last())
	require.Equal(t, 0, r.micAtt.last())

	s := r.store.Snapshot()
	require.False(t, s.MusicRelay)
	require.False(t, s.MicRelay)
}

func TestFailsafeMutesOnceThenRestores(t *testing.T) {
	r := newRig(t)
	r.receive(t, `{"mv":40,"cv":25,"mr":1,"cr":1}`)
	last := r.clock

	r.body.Check(last.Add(FailsafeTimeout - time.Millisecond))
	require.False(t, r.body.Failsafe())

	r.body.Check(last.Add(FailsafeTimeout))
	require.True(t, r.body.Failsafe())
	require.Equal(t, 0, r.musicAtt.last())
	require.Equal(t, 0, r.micAtt.last())
	n := len(r.musicAtt.volumes)

	r.body.Check(last.Add(2 * FailsafeTimeout))
	require.Len(t, r.musicAtt.volumes, n, "muted only once")

	// the next heartbeat, even identical to the last, restores volume
	r.clock = last.Add(3 * FailsafeTimeout)
	r.receive(t, `{"mv":40,"cv":25,"mr":1,"cr":1}`)
	require.False(t, r.body.Failsafe())
	require.Equal(t, 40, r.musicAtt.last())
	require.Equal(t, 25, r.micAtt.last())
}

func TestFailsafeWithoutAnyController(t *testing.T) {
	r := newRig(t)
	r.body.Check(r.clock.Add(FailsafeTimeout))
	require.True(t, r.body.Failsafe())
}

func TestConsole(t *testing.T) {
	r := newRig(t)

	reply, ok := r.body.Console('m')
	require.True(t, ok)
	require.Contains(t, reply, "music: bluetooth")
	require.Equal(t, gpio.Low, r.musicPin.last())

	reply, ok = r.body.Console('c')
	require.True(t, ok)
	require.Contains(t, reply, "mic: wireless")
	require.Equal(t, gpio.High, r.micPin.last())

	reply, ok = r.body.Console('?')
	require.True(t, ok)
	require.Contains(t, reply, "m=toggle music")

	_, ok = r.body.Console('x')
	require.False(t, ok)
}
