//go:build unix

package sys

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockDir_Exclusive(t *testing.T) {
	dir := t.TempDir()

	first, err := LockDir(dir, "LOCK")
	require.NoError(t, err)

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts just like another process would.
	_, err = LockDir(dir, "LOCK")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	content, err := os.ReadFile(first.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(content)))

	require.NoError(t, first.Release())
	require.NoError(t, first.Release(), "Release is idempotent")

	second, err := LockDir(dir, "LOCK")
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestLockDir_MissingDirectory(t *testing.T) {
	_, err := LockDir(t.TempDir()+"/does-not-exist", "LOCK")
	assert.Error(t, err)
}
