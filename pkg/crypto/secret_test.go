package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	key, err := LoadOrCreateKey(filepath.Join(t.TempDir(), "k", "fleet.key"))
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal("s3cret")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "s3cret")

	again, err := s.Seal(sealed)
	require.NoError(t, err)
	assert.Equal(t, sealed, again)

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)

	plain, err = s.Open("hand-written")
	require.NoError(t, err)
	assert.Equal(t, "hand-written", plain)

	empty, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSealer_WrongKey(t *testing.T) {
	a, err := NewSealer(make([]byte, KeySize))
	require.NoError(t, err)
	other := make([]byte, KeySize)
	other[0] = 1
	b, err := NewSealer(other)
	require.NoError(t, err)

	sealed, err := a.Seal("x")
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.ErrorContains(t, err, "decryption failed")

	_, err = a.Open(Prefix + "AAA")
	assert.Error(t, err)

	_, err = NewSealer([]byte("short"))
	assert.Error(t, err)
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.key")
	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(path, []byte("bad"), 0600))
	_, err = LoadOrCreateKey(path)
	assert.ErrorContains(t, err, "invalid key file size")
}
