package pedalboard

import (
	"math"

	"github.com/basswood-audio/pedalengine/pkg/bus"
	"github.com/basswood-audio/pedalengine/pkg/dezip"
	"github.com/basswood-audio/pedalengine/pkg/effect"
)

// step is one entry of the flat process plan §4.F builds at load time:
// each closure references exactly one effect instance (or a split mix)
// and reads/writes fixed arena buffers.
type step func(nFrames int)

// Board is a built process-plan: a flat sequence of steps plus the
// board's declared input/output buffers, ready for Run to drive one
// block at a time.
type Board struct {
	root         Node
	channelCount int
	blockSize    int
	sampleRate   float64

	arena *arena
	plan  []step

	in  [][]float32
	out [][]float32

	inputDezip  *dezip.Dezipper
	outputDezip *dezip.Dezipper

	faultCount uint64
}

// Empty returns a zero-effect board that passes audio straight through;
// used by the crash guard and at startup before a user pedalboard has
// been loaded.
func Empty(channelCount, blockSize int, sampleRate float64) *Board {
	return Build(nil, channelCount, blockSize, sampleRate)
}

// Build walks root left-to-right and compiles the process plan per
// §4.F's construction steps. A nil root produces a passthrough board.
func Build(root Node, channelCount, blockSize int, sampleRate float64) *Board {
	b := &Board{
		root:         root,
		channelCount: channelCount,
		blockSize:    blockSize,
		sampleRate:   sampleRate,
		arena:        newArena(channelCount, MaxSplitDepth(root)+1, blockSize),
		inputDezip:   dezip.New(sampleRate, 0.05, -96, 0),
		outputDezip:  dezip.New(sampleRate, 0.05, -96, 0),
	}
	b.in = b.arena.alloc()
	b.out = b.compile(root, b.in)
	return b
}

// compile recursively lowers a topology node into plan steps, wiring
// each node's input from in and returning the buffer its output lands
// in. Leaf effects are connected and Process-invoked in place; split
// nodes compile both legs then emit a mix step.
func (b *Board) compile(n Node, in [][]float32) [][]float32 {
	switch node := n.(type) {
	case nil:
		return in

	case *EffectNode:
		inst := node.Instance
		nodeIn := in
		needsAdapt := len(in) != max1(inst.AudioInputs())
		if needsAdapt {
			nodeIn = b.arena.alloc()[:max1(inst.AudioInputs())]
		}
		out := b.arena.alloc()[:max1(inst.AudioOutputs())]

		inst.ConnectInput(nodeIn)
		inst.ConnectOutput(out)

		if needsAdapt {
			rule := bus.Resolve(bus.Layout{Channels: len(in)}, bus.Layout{Channels: len(nodeIn)})
			b.plan = append(b.plan, func(nFrames int) {
				bus.Apply(rule, in, nodeIn)
				inst.Process(b.sampleRate, nFrames)
			})
		} else {
			b.plan = append(b.plan, func(nFrames int) {
				inst.Process(b.sampleRate, nFrames)
			})
		}

		// Re-expand back to board width so downstream edges always see
		// channelCount-wide buffers.
		if len(out) != b.channelCount {
			widened := b.arena.alloc()
			rule := bus.Resolve(bus.Layout{Channels: len(out)}, bus.Layout{Channels: b.channelCount})
			step := func(nFrames int) {
				bus.Apply(rule, out, widened)
			}
			b.plan = append(b.plan, step)
			return widened
		}
		return out

	case *LinearNode:
		cur := in
		for _, child := range node.Children {
			cur = b.compile(child, cur)
		}
		return cur

	case *SplitNode:
		outA := b.compile(node.A, in)
		outB := b.compile(node.B, in)
		mixed := b.arena.alloc()
		mixRatio := node.MixRatio
		panA, panB := node.PanA, node.PanB
		channelCount := b.channelCount
		b.plan = append(b.plan, func(nFrames int) {
			gA := float32((1 - mixRatio) * panGain(panA))
			gB := float32(mixRatio * panGain(panB))
			for ch := 0; ch < channelCount; ch++ {
				for i := 0; i < nFrames; i++ {
					mixed[ch][i] = outA[ch][i]*gA + outB[ch][i]*gB
				}
			}
		})
		return mixed

	default:
		return in
	}
}

func panGain(pan float64) float64 {
	if pan <= 0 {
		return 1
	}
	return math.Max(0, 1-pan)
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Run executes one block per §4.F's per-block execution steps 1-4. in
// and out must each have channelCount channels of at least nFrames
// length. It reports false (and the driver must mute and log) if any
// effect produced a non-finite sample.
func (b *Board) Run(in, out [][]float32, nFrames int, inputVolDB, outputVolDB float64) bool {
	b.inputDezip.SetTarget(inputVolDB)
	b.outputDezip.SetTarget(outputVolDB)

	n := min(len(b.in), len(in))
	for ch := 0; ch < n; ch++ {
		for i := 0; i < nFrames; i++ {
			b.in[ch][i] = in[ch][i] * float32(b.inputDezip.Tick())
		}
	}

	for _, s := range b.plan {
		s(nFrames)
	}

	finite := true
	m := min(len(b.out), len(out))
	for ch := 0; ch < m; ch++ {
		for i := 0; i < nFrames; i++ {
			v := b.out[ch][i] * float32(b.outputDezip.Tick())
			if v != v || v > 3.4e38 || v < -3.4e38 {
				finite = false
				v = 0
			}
			out[ch][i] = v
		}
	}
	if !finite {
		b.faultCount++
		clearBuffers(out)
	}
	return finite
}

// FaultCount returns the number of blocks this board has silenced due
// to a non-finite output, per §7's PluginFault recovery policy.
func (b *Board) FaultCount() uint64 { return b.faultCount }

// Instances returns every effect instance in the board, in plan order,
// for the swap protocol to diff against a newly-built board.
func (b *Board) Instances() []*effect.Instance {
	var out []*effect.Instance
	Walk(b.root, func(i *effect.Instance) { out = append(out, i) })
	return out
}

// InstanceByID returns the effect instance with the given instance_id,
// or nil if none is present in this board. Per §4.G / §4.H, commands
// addressing an instance absent from the live board are silently
// ignored rather than treated as an error.
func (b *Board) InstanceByID(id uint64) *effect.Instance {
	var found *effect.Instance
	Walk(b.root, func(i *effect.Instance) {
		if i.InstanceID == id {
			found = i
		}
	})
	return found
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
