package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeScalesByFader(t *testing.T) {
	line := Encode(Frame{MusicVolume: 80, MicVolume: 50, MainFader: 50, MusicRelay: true})
	require.Equal(t, `{"mv":40,"cv":25,"mr":1,"cr":0}`+"\n", string(line))
}

func TestEncodeIdentityAtFullFader(t *testing.T) {
	for v := 0; v <= 100; v++ {
		u, err := Decode(Encode(Frame{MusicVolume: v, MicVolume: 100 - v, MainFader: 100}))
		require.NoError(t, err)
		require.Equal(t, v, *u.MusicVolume)
		require.Equal(t, 100-v, *u.MicVolume)
	}
}

func TestEffectiveTruncatesAndClamps(t *testing.T) {
	require.Equal(t, 0, Effective(1, 99))
	require.Equal(t, 33, Effective(67, 50))
	require.Equal(t, 100, Effective(150, 100))
	require.Equal(t, 0, Effective(-5, 100))
	require.Equal(t, 80, Effective(80, 250))
}

func TestRoundTripRelays(t *testing.T) {
	for _, mr := range []bool{false, true} {
		for _, cr := range []bool{false, true} {
			u, err := Decode(Encode(Frame{MusicVolume: 10, MicVolume: 20, MainFader: 70, MusicRelay: mr, MicRelay: cr}))
			require.NoError(t, err)
			require.Equal(t, mr, *u.MusicRelay)
			require.Equal(t, cr, *u.MicRelay)
			require.Equal(t, 10*70/100, *u.MusicVolume)
			require.Equal(t, 20*70/100, *u.MicVolume)
			require.False(t, u.Shutdown)
		}
	}
}

func TestDecodePartial(t *testing.T) {
	u, err := Decode([]byte(`{"cr":1}`))
	require.NoError(t, err)
	require.Nil(t, u.MusicVolume)
	require.Nil(t, u.MicVolume)
	require.Nil(t, u.MusicRelay)
	require.NotNil(t, u.MicRelay)
	require.True(t, *u.MicRelay)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := []string{
		`not json`,
		`{"mv":`,
		`{"foo":1}`,
		`{}`,
		`null`,
		`[1,2]`,
		`{"mr":true}`,
		`{"pwr":1}`,
	}
	for _, c := range cases {
		u, err := Decode([]byte(c))
		require.Error(t, err, c)
		var de *DecodeError
		require.True(t, errors.As(err, &de), c)
		require.True(t, u.Empty(), c)
	}
}

func TestDecodeEmptyLine(t *testing.T) {
	_, err := Decode([]byte("  \r\n"))
	require.ErrorIs(t, err, ErrEmptyLine)
}

func TestShutdown(t *testing.T) {
	line := EncodeShutdown()
	require.Equal(t, `{"pwr":0}`+"\n", string(line))

	u, err := Decode(line)
	require.NoError(t, err)
	require.True(t, u.Shutdown)
	require.Equal(t, "pwr=0", u.String())
}

func TestIsQuery(t *testing.T) {
	require.True(t, IsQuery([]byte("?")))
	require.True(t, IsQuery([]byte("?\r\n")))
	require.True(t, IsQuery(EncodeQuery()))
	require.True(t, IsQuery([]byte(`{"cmd":"get"}`)))
	require.True(t, IsQuery([]byte(`{"cmd":"get","mv":3}`)))
	require.False(t, IsQuery([]byte(`{"cmd":"set"}`)))
	require.False(t, IsQuery([]byte(`{"mv":3}`)))
	require.False(t, IsQuery([]byte(`??`)))
}
