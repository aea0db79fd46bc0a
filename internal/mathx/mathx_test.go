package mathx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, 0, Clamp(-3, 0, 100))
	require.Equal(t, 100, Clamp(101, 0, 100))
	require.Equal(t, 7, Clamp(7, 100, 0))
}

func TestPercent(t *testing.T) {
	require.Equal(t, 0, Percent(-1))
	require.Equal(t, 55, Percent(55))
	require.Equal(t, int8(100), Percent(int8(120)))
}

func TestMapDescending(t *testing.T) {
	require.Equal(t, 83, Map(1, 1, 100, 83, 0))
	require.Equal(t, 0, Map(100, 1, 100, 83, 0))
	require.Equal(t, 42, Map(50, 1, 100, 83, 0))
	require.Equal(t, 83, Map(-20, 1, 100, 83, 0))
	require.Equal(t, 5, Map(9, 3, 3, 5, 10))
}
