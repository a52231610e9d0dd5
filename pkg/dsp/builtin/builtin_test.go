package builtin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basswood-audio/pedalengine/pkg/process"
)

func TestTubeDriveProcessesMonoBlock(t *testing.T) {
	tube := NewTubeDrive()
	require.NoError(t, tube.Prepare(48000, 64, 1, 1))
	tube.Activate()

	in := make([]float32, 64)
	for i := range in {
		in[i] = 0.5
	}
	out := make([]float32, 64)
	ctx := process.NewContext(64)
	ctx.Input = [][]float32{in}
	ctx.Output = [][]float32{out}
	ctx.NumFrames = 64
	ctx.SampleRate = 48000

	tube.Process(ctx)
	require.True(t, ctx.Finite())
}

func TestStereoChorusMonoToStereoOutputIsFinite(t *testing.T) {
	chorus := NewStereoChorus()
	require.NoError(t, chorus.Prepare(48000, 32, 1, 2))
	chorus.Activate()

	in := make([]float32, 32)
	for i := range in {
		in[i] = 0.25
	}
	outL, outR := make([]float32, 32), make([]float32, 32)
	ctx := process.NewContext(32)
	ctx.Input = [][]float32{in}
	ctx.Output = [][]float32{outL, outR}
	ctx.NumFrames = 32
	ctx.SampleRate = 48000

	chorus.Process(ctx)
	require.True(t, ctx.Finite())
}

func TestHallReverbRejectsWrongChannelCount(t *testing.T) {
	verb := NewHallReverb()
	require.Error(t, verb.Prepare(48000, 64, 1, 1))
	require.NoError(t, verb.Prepare(48000, 64, 2, 2))
}

func TestSqueezeLoudSignalOutputIsFinite(t *testing.T) {
	sq := NewSqueeze()
	require.NoError(t, sq.Prepare(48000, 64, 1, 1))
	sq.Activate()
	sq.Controls().Get("threshold").SetValue(-20)
	sq.Controls().Get("ratio").SetValue(8)

	in := make([]float32, 64)
	for i := range in {
		in[i] = 0.9
	}
	out := make([]float32, 64)
	ctx := process.NewContext(64)
	ctx.Input = [][]float32{in}
	ctx.Output = [][]float32{out}
	ctx.NumFrames = 64
	ctx.SampleRate = 48000

	sq.Process(ctx)
	require.True(t, ctx.Finite())
}

func monoContext(in []float32, out []float32, sampleRate float64) *process.Context {
	ctx := process.NewContext(len(in))
	ctx.Input = [][]float32{in}
	ctx.Output = [][]float32{out}
	ctx.NumFrames = len(in)
	ctx.SampleRate = sampleRate
	return ctx
}

func TestCrusherFourBitOutputIsFinite(t *testing.T) {
	c := NewCrusher()
	require.NoError(t, c.Prepare(48000, 64, 1, 1))
	c.Activate()
	c.Controls().Get("bits").SetValue(4)

	in := make([]float32, 64)
	for i := range in {
		in[i] = 0.7
	}
	out := make([]float32, 64)
	c.Process(monoContext(in, out, 48000))
	require.True(t, monoContext(in, out, 48000).Finite())
}

func TestNoiseGateClosesOnSilence(t *testing.T) {
	g := NewNoiseGate()
	require.NoError(t, g.Prepare(48000, 256, 1, 1))
	g.Activate()
	g.Controls().Get("threshold").SetValue(-30)

	in := make([]float32, 256)
	out := make([]float32, 256)
	ctx := monoContext(in, out, 48000)
	g.Process(ctx)
	require.True(t, ctx.Finite())
	for _, s := range out {
		require.InDelta(t, 0, s, 0.2)
	}
}

func TestCeilingLoudSignalOutputIsFinite(t *testing.T) {
	c := NewCeiling()
	require.NoError(t, c.Prepare(48000, 64, 1, 1))
	c.Activate()

	in := make([]float32, 64)
	for i := range in {
		in[i] = 1.5
	}
	out := make([]float32, 64)
	ctx := monoContext(in, out, 48000)
	c.Process(ctx)
	require.True(t, ctx.Finite())
}

func TestPulseTremoloOutputIsFinite(t *testing.T) {
	tr := NewPulseTremolo()
	require.NoError(t, tr.Prepare(48000, 128, 1, 1))
	tr.Activate()

	in := make([]float32, 128)
	for i := range in {
		in[i] = 0.8
	}
	out := make([]float32, 128)
	ctx := monoContext(in, out, 48000)
	tr.Process(ctx)
	require.True(t, ctx.Finite())
}

func TestEchoImpulseOutputIsFinite(t *testing.T) {
	e := NewEcho()
	require.NoError(t, e.Prepare(48000, 64, 1, 1))
	e.Activate()

	in := make([]float32, 64)
	in[0] = 1.0
	out := make([]float32, 64)
	ctx := monoContext(in, out, 48000)
	e.Process(ctx)
	require.True(t, ctx.Finite())
}

func TestToneStackBassBoostOutputIsFinite(t *testing.T) {
	ts := NewToneStack()
	require.NoError(t, ts.Prepare(48000, 64, 1, 1))
	ts.Activate()
	ts.Controls().Get("bass").SetValue(6)

	in := make([]float32, 64)
	for i := range in {
		in[i] = 0.3
	}
	out := make([]float32, 64)
	ctx := monoContext(in, out, 48000)
	ts.Process(ctx)
	require.True(t, ctx.Finite())
}
