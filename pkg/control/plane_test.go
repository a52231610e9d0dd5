package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basswood-audio/pedalengine/pkg/effect"
	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/plugin"
	"github.com/basswood-audio/pedalengine/pkg/process"
	"github.com/basswood-audio/pedalengine/pkg/ringbuf"
)

type passProcessor struct {
	controls *param.Registry
}

func newPassProcessor() *passProcessor {
	r := param.NewRegistry()
	r.Add(param.NewPort("level", "Level", 0, 4, 1))
	return &passProcessor{controls: r}
}

func (p *passProcessor) Prepare(sampleRate float64, maxBlockSize, audioIn, audioOut int) error {
	return nil
}
func (p *passProcessor) Activate()   {}
func (p *passProcessor) Deactivate() {}
func (p *passProcessor) Process(ctx *process.Context) {
	level := float32(p.controls.Get("level").Value())
	for ch := range ctx.Output {
		for i := 0; i < ctx.NumFrames; i++ {
			ctx.Output[ch][i] = ctx.Input[ch][i] * level
		}
	}
}
func (p *passProcessor) Controls() *param.Registry { return p.controls }
func (p *passProcessor) LatencySamples() int       { return 0 }

func buildSingleEffectBoard(t *testing.T, instanceID uint64) (*pedalboard.Board, *effect.Instance) {
	t.Helper()
	proc := newPassProcessor()
	inst := effect.New(instanceID, "builtin:level", proc)
	require.NoError(t, inst.Prepare(48000, 64, 1, 1))
	inst.Activate()
	board := pedalboard.Build(&pedalboard.EffectNode{Instance: inst}, 1, 64, 48000)
	return board, inst
}

func TestApplyRealtimeCommandsAppliesSetControl(t *testing.T) {
	pair := ringbuf.NewPair(4)
	plane := New(pedalboard.NewRuntime(1, 64, 48000), pair)
	board, inst := buildSingleEffectBoard(t, 42)

	port := inst.Controls().Get("level")
	require.NotNil(t, port)
	require.NoError(t, plane.SetControl(42, 0, 3.0))

	var scratch [HostCommandScratchSize]byte
	plane.ApplyRealtimeCommands(board, scratch[:])

	require.Equal(t, 3.0, port.Value())
}

func TestApplyRealtimeCommandsIgnoresUnknownInstance(t *testing.T) {
	pair := ringbuf.NewPair(4)
	plane := New(pedalboard.NewRuntime(1, 64, 48000), pair)
	board, _ := buildSingleEffectBoard(t, 1)

	require.NoError(t, plane.SetControl(999, 0, 1.0))

	var scratch [HostCommandScratchSize]byte
	require.NotPanics(t, func() { plane.ApplyRealtimeCommands(board, scratch[:]) })
}

func TestApplyRealtimeCommandsAppliesBypass(t *testing.T) {
	pair := ringbuf.NewPair(4)
	plane := New(pedalboard.NewRuntime(1, 64, 48000), pair)
	board, inst := buildSingleEffectBoard(t, 7)

	require.NoError(t, plane.SetBypass(7, true))
	var scratch [HostCommandScratchSize]byte
	plane.ApplyRealtimeCommands(board, scratch[:])

	require.True(t, inst.Bypass())
}

func TestVolumeCommandsUpdateDezipTargets(t *testing.T) {
	pair := ringbuf.NewPair(4)
	plane := New(pedalboard.NewRuntime(1, 64, 48000), pair)
	board, _ := buildSingleEffectBoard(t, 1)

	require.NoError(t, plane.SetInputVolDB(-6))
	require.NoError(t, plane.SetOutputVolDB(-3))
	var scratch [HostCommandScratchSize]byte
	plane.ApplyRealtimeCommands(board, scratch[:])

	require.InDelta(t, -6.0, plane.InputVolDB(), 1e-6)
	require.InDelta(t, -3.0, plane.OutputVolDB(), 1e-6)
}

var _ plugin.Processor = (*passProcessor)(nil)
