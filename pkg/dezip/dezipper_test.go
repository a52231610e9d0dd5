package dezip

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIdleDezipperDoesNoWork(t *testing.T) {
	d := New(48000, 0.1, -96, -20)
	require.True(t, d.IsIdle())
	x := d.Tick()
	require.Equal(t, x, d.Tick())
}

func TestSnapsToZeroBelowMinDB(t *testing.T) {
	d := New(48000, 0.1, -96, -96)
	require.Equal(t, 0.0, d.Tick())
}

// TestConvergenceBound checks §8 property 5: for any step change to
// target_db, current_db reaches target_db within
// rate_seconds * sample_rate / block_size blocks (+-1).
func TestConvergenceBound(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sampleRate := rapid.SampledFrom([]float64{44100, 48000, 96000}).Draw(rt, "sr")
		rate := rapid.Float64Range(0.01, 1.0).Draw(rt, "rate")
		blockSize := rapid.SampledFrom([]int{32, 64, 128, 256, 1024}).Draw(rt, "block")
		startDB := rapid.Float64Range(-90, 0).Draw(rt, "start")
		targetDB := rapid.Float64Range(-90, 0).Draw(rt, "target")

		d := New(sampleRate, rate, -96, startDB)
		d.SetTarget(targetDB)

		maxBlocks := d.BlocksToConverge(blockSize)
		converged := false
		for b := 0; b < maxBlocks; b++ {
			for f := 0; f < blockSize; f++ {
				d.Tick()
			}
			if d.CurrentDB() == targetDB {
				converged = true
				break
			}
		}
		require.Truef(rt, converged, "did not converge within %d blocks (rate=%v sr=%v block=%v)", maxBlocks, rate, sampleRate, blockSize)
	})
}

func TestSetTargetRestartsRamp(t *testing.T) {
	d := New(48000, 0.05, -96, -40)
	d.SetTarget(0)
	for i := 0; i < 10000 && !d.IsIdle(); i++ {
		d.Tick()
	}
	require.InDelta(t, 0.0, d.CurrentDB(), 1e-9)
}
