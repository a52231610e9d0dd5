package pedalboard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basswood-audio/pedalengine/pkg/effect"
	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/process"
)

// passProcessor is a minimal fixture plugin.Processor: copies input to
// output unchanged, scaled by a "level" control.
type passProcessor struct {
	ports *param.Registry
}

func newPassProcessor() *passProcessor {
	r := param.NewRegistry()
	r.Add(param.NewPort("level", "Level", 0, 2, 1))
	return &passProcessor{ports: r}
}

func (p *passProcessor) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	return nil
}
func (p *passProcessor) Activate()   {}
func (p *passProcessor) Deactivate() {}
func (p *passProcessor) Process(ctx *process.Context) {
	level := float32(p.ports.Get("level").Value())
	n := len(ctx.Input)
	if len(ctx.Output) < n {
		n = len(ctx.Output)
	}
	for ch := 0; ch < n; ch++ {
		for i := 0; i < ctx.NumFrames; i++ {
			ctx.Output[ch][i] = ctx.Input[ch][i] * level
		}
	}
}
func (p *passProcessor) Controls() *param.Registry { return p.ports }
func (p *passProcessor) LatencySamples() int        { return 0 }

func newPreparedInstance(t *testing.T, id uint64, channels, blockSize int) *effect.Instance {
	t.Helper()
	inst := effect.New(id, "test://pass", newPassProcessor())
	require.NoError(t, inst.Prepare(48000, blockSize, channels, channels))
	inst.Activate()
	return inst
}

// TestEmptyBoardRoundTrip implements §8 property 1's round-trip shape:
// an empty pedalboard must reproduce its input exactly (modulo the
// volume dezippers, which start at 0dB = unity gain).
func TestEmptyBoardRoundTrip(t *testing.T) {
	const blockSize = 128
	b := Empty(2, blockSize, 48000)

	in := make([][]float32, 2)
	out := make([][]float32, 2)
	for ch := range in {
		in[ch] = make([]float32, blockSize)
		out[ch] = make([]float32, blockSize)
		for i := range in[ch] {
			in[ch][i] = float32(i) / float32(blockSize)
		}
	}

	ok := b.Run(in, out, blockSize, 0, 0)
	require.True(t, ok)
	for ch := range out {
		for i := range out[ch] {
			require.InDelta(t, in[ch][i], out[ch][i], 1e-5)
		}
	}
}

func TestZeroChannelBoardProducesSilenceWithoutFaulting(t *testing.T) {
	const blockSize = 64
	b := Empty(0, blockSize, 48000)
	ok := b.Run(nil, nil, blockSize, 0, 0)
	require.True(t, ok)
}

func TestLinearBoardRunsEveryEffectOnce(t *testing.T) {
	const blockSize = 32
	inst1 := newPreparedInstance(t, 1, 2, blockSize)
	inst1.Controls().Get("level").SetValue(0.5)
	inst2 := newPreparedInstance(t, 2, 2, blockSize)
	inst2.Controls().Get("level").SetValue(0.5)

	root := &LinearNode{Children: []Node{
		&EffectNode{Instance: inst1},
		&EffectNode{Instance: inst2},
	}}
	b := Build(root, 2, blockSize, 48000)

	in := make([][]float32, 2)
	out := make([][]float32, 2)
	for ch := range in {
		in[ch] = make([]float32, blockSize)
		out[ch] = make([]float32, blockSize)
		for i := range in[ch] {
			in[ch][i] = 1
		}
	}

	// Run enough blocks for the input/output dezippers (unity gain, so
	// effectively immediate) to settle.
	for i := 0; i < 4; i++ {
		b.Run(in, out, blockSize, 0, 0)
	}

	require.InDelta(t, 0.25, out[0][blockSize-1], 1e-3, "two cascaded 0.5x effects must combine multiplicatively")
}

func TestPedalboardSwapProducesNoFaultAcrossTransition(t *testing.T) {
	const blockSize = 64
	rt := NewRuntime(2, blockSize, 48000)

	instA := newPreparedInstance(t, 1, 2, blockSize)
	boardA := Build(&EffectNode{Instance: instA}, 2, blockSize, 48000)
	require.NoError(t, rt.Swap(boardA))
	rt.AcknowledgeBlock()

	instB := newPreparedInstance(t, 2, 2, blockSize)
	boardB := Build(&EffectNode{Instance: instB}, 2, blockSize, 48000)
	shared := TransferInstances(rt.Live(), boardB)
	require.Empty(t, shared, "distinct instance ids must not be reported as shared")

	require.NoError(t, rt.Swap(boardB))

	in := make([][]float32, 2)
	out := make([][]float32, 2)
	for ch := range in {
		in[ch] = make([]float32, blockSize)
		out[ch] = make([]float32, blockSize)
	}

	for i := 0; i < 8; i++ {
		rt.AcknowledgeBlock()
		ok := rt.Live().Run(in, out, blockSize, 0, 0)
		require.True(t, ok)
		for ch := range out {
			for _, s := range out[ch] {
				require.False(t, s != s, "must never produce NaN across a swap")
			}
		}
	}

	old := rt.ReclaimQuiescent()
	require.NotNil(t, old)
}

func TestSwapBusyWhileInFlight(t *testing.T) {
	rt := NewRuntime(2, 32, 48000)
	b1 := Empty(2, 32, 48000)
	b2 := Empty(2, 32, 48000)
	require.NoError(t, rt.Swap(b1))
	require.ErrorIs(t, rt.Swap(b2), ErrBusy)
	rt.AcknowledgeBlock()
	require.NoError(t, rt.Swap(b2))
}
