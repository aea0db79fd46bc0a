package nvs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, namespace string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "sub", "nvs.db"), namespace)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteMissingKey(t *testing.T) {
	s := openTemp(t, "mixer-app")

	_, err := s.GetInt("mus_v")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetBool("mus_r")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLitePutOverwrites(t *testing.T) {
	s := openTemp(t, "mixer-app")

	require.NoError(t, s.PutInt("mus_v", 80))
	require.NoError(t, s.PutInt("mus_v", 42))
	require.NoError(t, s.PutBool("mic_r", true))

	v, err := s.GetInt("mus_v")
	require.NoError(t, err)
	require.Equal(t, 42, v)

	b, err := s.GetBool("mic_r")
	require.NoError(t, err)
	require.True(t, b)
}

func TestSQLiteNamespacesAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvs.db")
	a, err := OpenSQLite(path, "a")
	require.NoError(t, err)
	require.NoError(t, a.PutInt("k", 1))
	require.NoError(t, a.Close())

	b, err := OpenSQLite(path, "b")
	require.NoError(t, err)
	defer b.Close()

	_, err = b.GetInt("k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRejectsEmptyArgs(t *testing.T) {
	_, err := OpenSQLite("", "x")
	require.Error(t, err)
	_, err = OpenSQLite(filepath.Join(t.TempDir(), "nvs.db"), "")
	require.Error(t, err)
}

func TestMemoryCountsWrites(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.PutInt("a", 1))
	require.NoError(t, m.PutBool("b", true))
	require.Equal(t, 2, m.Writes())

	_, err := m.GetBool("a")
	require.ErrorIs(t, err, ErrNotFound)
}
