package baseline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticStore(t *testing.T) {
	s := NewStaticStore()
	s.Set("R4", "router_id", "4.4.4.4")
	s.Set("R4", "as_number", "100")

	v, ok, err := s.Get(context.Background(), "R4", "router_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4.4.4.4", v)

	_, ok, err = s.Get(context.Background(), "R4", "process_id")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(context.Background(), "R9", "router_id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	content := `devices:
  R4:
    as_number: "100"
    expected_hello: "5"
    expected_hold: "15"
  R6:
    process_id: "1"
    router_id: "6.6.6.6"
`
	path := filepath.Join(t.TempDir(), "baseline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := LoadFile(path)
	require.NoError(t, err)

	v, ok, err := store.Get(context.Background(), "R4", "expected_hold")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "15", v)

	assert.ElementsMatch(t, []string{"R4", "R6"}, store.Devices())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
