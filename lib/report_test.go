package lib

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCentroid(t *testing.T) {
	assert.Equal(t, "Navigable path center: none", FormatCentroid(TrackedCentroid{}))
	assert.Equal(t, "Navigable path center: (3 , -1)", FormatCentroid(TrackedCentroid{X: 3, Y: -1, HasX: true, HasY: true, Found: true}))
	// parity mode can carry values through a frame without matches
	assert.Equal(t, "Navigable path center: (3 , ?)", FormatCentroid(TrackedCentroid{X: 3, HasX: true}))

	var buf bytes.Buffer
	PrintCentroid(&buf, TrackedCentroid{X: 1, Y: 2, HasX: true, HasY: true, Found: true})
	assert.Contains(t, buf.String(), "Navigable path center: (1 , 2)")
}

func TestTrajectory(t *testing.T) {
	var traj Trajectory
	traj.Add(0, TrackedCentroid{X: 1, Y: 2, HasX: true, HasY: true, Found: true})
	traj.Add(1, TrackedCentroid{})
	traj.Add(2, TrackedCentroid{X: 4, HasX: true, Found: true})
	assert.Equal(t, 2, traj.Len())
	assert.Equal(t, 1, traj.Misses())

	fname := filepath.Join(t.TempDir(), "traj.png")
	require.NoError(t, traj.Save("test", fname))
	st, err := os.Stat(fname)
	require.NoError(t, err)
	assert.Greater(t, st.Size(), int64(0))

	var empty Trajectory
	assert.Error(t, empty.Save("empty", fname))

	var buf bytes.Buffer
	PrintRunSummary(&buf, 3, &traj)
	assert.Contains(t, buf.String(), "frames without path")
}
