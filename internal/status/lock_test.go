package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_BlocksConcurrentWriter(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "status.json")

	release, err := Acquire(path, "run-a")
	require.NoError(t, err)

	_, err = Acquire(path, "run-b")
	assert.Error(t, err, "a live lock must block a second writer")

	require.NoError(t, release())

	release2, err := Acquire(path, "run-c")
	require.NoError(t, err, "lock must be reacquirable after release")
	require.NoError(t, release2())
}

func TestAcquire_ReclaimsStaleLock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "status.json")

	stale := Lock{RunID: "dead-run", PID: 999999, StartedAt: time.Now()}
	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath(path), data, 0o644))

	release, err := Acquire(path, "run-new")
	require.NoError(t, err, "a lock held by a dead pid must be reclaimed")
	require.NoError(t, release())
}
