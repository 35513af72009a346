package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func NewInmemState(t *testing.T) *State {
	s, err := NewState(nil)
	require.NoError(t, err)

	return s
}

func NewTestCheckpoint(t *testing.T) *Checkpoint {
	tmpDir, err := os.MkdirTemp("/tmp", "flight-relay-")
	require.NoError(t, err)

	c, err := NewCheckpoint(filepath.Join(tmpDir, "checkpoint.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		os.RemoveAll(tmpDir)
	})
	return c
}
