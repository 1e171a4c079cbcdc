package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinbarfleur/LeCollecteurDeDose-sub001/internal/outcome"
)

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.yaml")),
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("k", "v"))
			v, ok, err := s.Get("k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", v)

			require.NoError(t, s.Delete("k"))
			require.NoError(t, s.Delete("k"))
			_, ok, err = s.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestForcedOutcome(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			v, err := ForcedOutcome(s)
			require.NoError(t, err)
			assert.Equal(t, outcome.SettingRandom, v)

			require.NoError(t, SetForcedOutcome(s, "transform"))
			v, err = ForcedOutcome(s)
			require.NoError(t, err)
			assert.Equal(t, "transform", v)

			assert.ErrorIs(t, SetForcedOutcome(s, "explode"), outcome.ErrUnknownKind)

			require.NoError(t, SetForcedOutcome(s, ""))
			v, err = ForcedOutcome(s)
			require.NoError(t, err)
			assert.Equal(t, outcome.SettingRandom, v)
		})
	}
}

func TestForcedOutcome_RejectsTamperedValue(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(KeyForcedOutcome, "mirror"))
	_, err := ForcedOutcome(s)
	assert.ErrorIs(t, err, outcome.ErrUnknownKind)
}

func TestFileStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, SetForcedOutcome(NewFileStore(path), "duplicate"))

	v, err := ForcedOutcome(NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, "duplicate", v)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "altar_forced_outcome: duplicate")
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o600))

	_, _, err := NewFileStore(path).Get("k")
	assert.Error(t, err)
}
