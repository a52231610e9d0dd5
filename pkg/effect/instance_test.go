package effect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/process"
)

// gainProcessor is a minimal plugin.Processor fixture: multiplies input
// by a "gain" control port. Used only to exercise Instance in isolation.
type gainProcessor struct {
	ports    *param.Registry
	prepared bool
	active   bool
}

func newGainProcessor() *gainProcessor {
	r := param.NewRegistry()
	r.Add(param.NewPort("gain", "Gain", 0, 4, 1))
	return &gainProcessor{ports: r}
}

func (g *gainProcessor) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	g.prepared = true
	return nil
}

func (g *gainProcessor) Activate()   { g.active = true }
func (g *gainProcessor) Deactivate() { g.active = false }

func (g *gainProcessor) Process(ctx *process.Context) {
	gain := float32(g.ports.Get("gain").Value())
	n := len(ctx.Input)
	if len(ctx.Output) < n {
		n = len(ctx.Output)
	}
	for ch := 0; ch < n; ch++ {
		for i := 0; i < ctx.NumFrames; i++ {
			ctx.Output[ch][i] = ctx.Input[ch][i] * gain
		}
	}
}

func (g *gainProcessor) Controls() *param.Registry { return g.ports }
func (g *gainProcessor) LatencySamples() int        { return 0 }

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst := New(1, "test://gain", newGainProcessor())
	require.NoError(t, inst.Prepare(48000, 64, 1, 1))
	inst.Activate()
	return inst
}

func TestStateMachineTransitions(t *testing.T) {
	proc := newGainProcessor()
	inst := New(1, "test://gain", proc)
	require.Equal(t, Created, inst.State())

	require.NoError(t, inst.Prepare(48000, 64, 1, 1))
	require.Equal(t, Prepared, inst.State())
	require.True(t, proc.prepared)

	inst.Activate()
	require.Equal(t, Active, inst.State())
	require.True(t, proc.active)

	inst.Deactivate()
	require.Equal(t, Prepared, inst.State())
	require.False(t, proc.active)
}

func TestSetControlNonRealtimeEnqueuesAndDrainsOnProcess(t *testing.T) {
	inst := newTestInstance(t)
	in := [][]float32{{1, 1, 1, 1}}
	out := [][]float32{make([]float32, 4)}
	inst.ConnectInput(in)
	inst.ConnectOutput(out)

	inst.SetControl("gain", 2.0, false)
	v, ok := inst.GetControl("gain")
	require.True(t, ok)
	require.Equal(t, 1.0, v, "queued change must not apply until Process drains it")

	inst.Process(48000, 4)
	v, _ = inst.GetControl("gain")
	require.Equal(t, 2.0, v)
	for _, s := range out[0] {
		require.Equal(t, float32(2.0), s)
	}
}

func TestSetControlRealtimeAppliesImmediately(t *testing.T) {
	inst := newTestInstance(t)
	inst.SetControl("gain", 3.0, true)
	v, _ := inst.GetControl("gain")
	require.Equal(t, 3.0, v)
}

// TestBypassCrossfadeBoundary implements §8 scenario 2: the block where
// bypass flips from off to on still runs the wet path and crossfades to
// dry across the block, and the following block is a pure passthrough.
func TestBypassCrossfadeBoundary(t *testing.T) {
	inst := newTestInstance(t)
	inst.SetControl("gain", 2.0, true)

	in := [][]float32{{1, 1, 1, 1}}
	out := [][]float32{make([]float32, 4)}
	inst.ConnectInput(in)
	inst.ConnectOutput(out)

	inst.Process(48000, 4)
	for _, s := range out[0] {
		require.Equal(t, float32(2.0), s)
	}

	inst.SetBypass(true)
	inst.Process(48000, 4)
	require.Equal(t, float32(1.0), out[0][3], "last frame of the edge block must have fully reached dry")
	require.Less(t, out[0][0], float32(2.0))
	require.Greater(t, out[0][0], float32(1.0))

	inst.Process(48000, 4)
	for _, s := range out[0] {
		require.Equal(t, float32(1.0), s, "steady-state bypass must be an exact passthrough")
	}
}

func TestBypassOffCrossfadesBackToWet(t *testing.T) {
	inst := newTestInstance(t)
	inst.SetControl("gain", 2.0, true)
	in := [][]float32{{1, 1, 1, 1}}
	out := [][]float32{make([]float32, 4)}
	inst.ConnectInput(in)
	inst.ConnectOutput(out)

	inst.SetBypass(true)
	inst.Process(48000, 4)
	inst.Process(48000, 4)
	require.Equal(t, float32(1.0), out[0][0])

	inst.SetBypass(false)
	inst.Process(48000, 4)
	require.Equal(t, float32(2.0), out[0][3], "last frame of the edge block must have fully reached wet")
}

func TestParamQueueDropsOldestOnOverflow(t *testing.T) {
	q := newParamQueue(4)
	for i := 0; i < 6; i++ {
		q.push(param.Change{Symbol: "x", Value: float64(i)})
	}
	var got []float64
	q.drain(func(c param.Change) { got = append(got, c.Value) })
	require.Equal(t, []float64{2, 3, 4, 5}, got, "overflow must drop oldest, never the newest write")
}
