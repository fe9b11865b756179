//go:build unix

package segment

import (
	"testing"

	"github.com/INLOpen/kvbench/core"
	"github.com/INLOpen/kvbench/sys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SecondOpenIsLocked(t *testing.T) {
	dir := t.TempDir()
	first := openTestStore(t, dir, nil, core.CompressionNone)

	_, err := Open[uint64, uint64](dir, Options{})
	require.Error(t, err)
	assert.True(t, core.IsStorageIOError(err))
	assert.ErrorIs(t, err, sys.ErrLocked)

	require.NoError(t, first.Close())
	second, err := Open[uint64, uint64](dir, Options{})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
