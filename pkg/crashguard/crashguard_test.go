package crashguard

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRepeatedCrashRefusesCurrentPedalboard implements §8 scenario 6:
// a count above MaxCount with a recent-but-not-power-off-reset crash
// timestamp must refuse the current pedalboard.
func TestRepeatedCrashRefusesCurrentPedalboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashguard")
	lastCrash := time.Now().Add(-1 * time.Minute).UnixMilli()
	writeRaw(t, path, 5, lastCrash)

	g, err := Load(path)
	require.NoError(t, err)
	require.True(t, g.ShouldLoadEmpty())
}

func TestPowerOffResetClearsCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashguard")
	lastCrash := time.Now().Add(-1 * time.Second).UnixMilli()
	writeRaw(t, path, 5, lastCrash)

	g, err := Load(path)
	require.NoError(t, err)
	require.False(t, g.ShouldLoadEmpty())
	require.Equal(t, 0, g.Count())
}

func TestStaleCrashIsCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashguard")
	lastCrash := time.Now().Add(-1 * time.Hour).UnixMilli()
	writeRaw(t, path, 5, lastCrash)

	g, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, g.Count())
}

func TestScopeEnterCloseClearsOnCleanExit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashguard")
	g, err := Load(path)
	require.NoError(t, err)

	scope, err := g.Enter()
	require.NoError(t, err)
	require.Equal(t, 1, g.Count())

	require.NoError(t, scope.Close())
	require.Equal(t, 0, g.Count())
}

func TestScopeNestingIsRefCounted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crashguard")
	g, err := Load(path)
	require.NoError(t, err)

	outer, err := g.Enter()
	require.NoError(t, err)
	inner, err := g.Enter()
	require.NoError(t, err)
	require.Equal(t, 1, g.Count(), "nested Enter must not double-increment")

	require.NoError(t, inner.Close())
	require.Equal(t, 1, g.Count(), "inner Close must not clear before outer")

	require.NoError(t, outer.Close())
	require.Equal(t, 0, g.Count())
}

func writeRaw(t *testing.T, path string, count int, lastCrashMs int64) {
	t.Helper()
	g := &Guard{path: path, count: count, lastCrashMs: lastCrashMs}
	require.NoError(t, g.flush())
}
