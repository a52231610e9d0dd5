// Package effect implements EffectInstance (§3, §4.E): the opaque
// per-plugin state a pedalboard holds for one loaded effect, including
// its lifecycle, parameter queue, bypass crossfade, and I/O buffer
// connections.
package effect

import (
	"fmt"
	"sync/atomic"

	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/plugin"
	"github.com/basswood-audio/pedalengine/pkg/process"
)

// State is the EffectInstance lifecycle from §3: transitions are
// strictly monotonic per load (Created -> Prepared -> Active ->
// Prepared). Destroyed is declared, but no method in this package
// moves an instance to it.
type State int32

const (
	Created State = iota
	Prepared
	Active
	Destroyed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Prepared:
		return "Prepared"
	case Active:
		return "Active"
	case Destroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// defaultQueueCapacity bounds the per-effect parameter_change queue.
const defaultQueueCapacity = 256

// Instance is one loaded plugin instance within a pedalboard.
type Instance struct {
	InstanceID uint64
	PluginURI  string

	proc   plugin.Processor
	state  atomic.Int32
	bypass atomic.Bool

	// bypassChangedThisBlock/lastBypass implement the edge-triggered bypass
	// policy of §4.E: the block where bypass flips still runs process,
	// and the output is crossfaded with the dry path over that block.
	bypassChangedThisBlock bool
	lastBypass             bool

	queue *paramQueue

	inputs  [][]float32
	outputs [][]float32

	audioInputs  int
	audioOutputs int

	ctx *process.Context
}

// New creates an instance wrapping a prepared-capable processor. The
// processor itself is not touched until Prepare is called.
func New(instanceID uint64, pluginURI string, proc plugin.Processor) *Instance {
	inst := &Instance{
		InstanceID: instanceID,
		PluginURI:  pluginURI,
		proc:       proc,
		queue:      newParamQueue(defaultQueueCapacity),
	}
	inst.state.Store(int32(Created))
	return inst
}

// State returns the instance's current lifecycle state.
func (e *Instance) State() State { return State(e.state.Load()) }

// Prepare allocates processing resources; non-realtime only.
func (e *Instance) Prepare(sampleRate float64, maxBlockSize, audioIn, audioOut int) error {
	if e.State() != Created && e.State() != Prepared {
		return fmt.Errorf("effect %d: Prepare called from state %s", e.InstanceID, e.State())
	}
	if err := e.proc.Prepare(sampleRate, maxBlockSize, audioIn, audioOut); err != nil {
		return err
	}
	e.ctx = process.NewContext(maxBlockSize)
	e.audioInputs = audioIn
	e.audioOutputs = audioOut
	e.state.Store(int32(Prepared))
	return nil
}

// AudioInputs and AudioOutputs report the channel counts this instance
// was last prepared with, used by the pedalboard to resolve a bus.Rule
// at each edge feeding or leaving this instance.
func (e *Instance) AudioInputs() int  { return e.audioInputs }
func (e *Instance) AudioOutputs() int { return e.audioOutputs }

// Activate and Deactivate are realtime-safe and idempotent.
func (e *Instance) Activate() {
	if e.State() == Prepared {
		e.proc.Activate()
		e.state.Store(int32(Active))
	}
}

// Deactivate must observe one flush process call with zero input
// before transitioning, per §4.E; callers run that flush pass
// themselves (via Process with a silent ctx) before calling Deactivate.
func (e *Instance) Deactivate() {
	if e.State() == Active {
		e.proc.Deactivate()
		e.state.Store(int32(Prepared))
	}
}

// ConnectInput and ConnectOutput bind this instance's I/O ports to
// arena-owned buffers. Realtime-safe: both just overwrite a slice
// header.
func (e *Instance) ConnectInput(buffers [][]float32)  { e.inputs = buffers }
func (e *Instance) ConnectOutput(buffers [][]float32) { e.outputs = buffers }

// SetControl enqueues a change on the parameter queue. It is the only
// realtime-safe way for a non-realtime caller (the control plane) to
// change a control; calling it from the realtime thread writes the
// port directly instead, per §4.E.
func (e *Instance) SetControl(symbol string, value float64, fromRealtime bool) {
	if fromRealtime {
		if p := e.proc.Controls().Get(symbol); p != nil {
			p.SetValue(value)
		}
		return
	}
	e.queue.push(param.Change{Symbol: symbol, Value: value})
}

// GetControl returns a control port's current plain value.
func (e *Instance) GetControl(symbol string) (float64, bool) {
	p := e.proc.Controls().Get(symbol)
	if p == nil {
		return 0, false
	}
	return p.Value(), true
}

// SetBypass sets the bypass flag. Edge detection happens in Process.
func (e *Instance) SetBypass(enable bool) { e.bypass.Store(enable) }

// Bypass reports the current bypass flag.
func (e *Instance) Bypass() bool { return e.bypass.Load() }

// drainQueue applies every queued parameter change by writing directly
// to the control port, per §4.E's "must drain its parameter queue
// before invoking the plugin's process entrypoint".
func (e *Instance) drainQueue() {
	e.queue.drain(func(c param.Change) {
		if p := e.proc.Controls().Get(c.Symbol); p != nil {
			p.SetValue(c.Value)
		}
	})
}

// Process runs one block at sampleRate; n is the frame count.
func (e *Instance) Process(sampleRate float64, n int) {
	e.drainQueue()

	bypassNow := e.bypass.Load()
	e.bypassChangedThisBlock = bypassNow != e.lastBypass

	e.ctx.Input = e.inputs
	e.ctx.Output = e.outputs
	e.ctx.SampleRate = sampleRate
	e.ctx.NumFrames = n

	oneInOneOut := len(e.inputs) == 1 && len(e.outputs) == 1

	if bypassNow && oneInOneOut && !e.bypassChangedThisBlock {
		// Steady-state bypass on a 1-in-1-out effect: short-circuit
		// without running process, per §4.E.
		e.ctx.PassThrough()
		e.lastBypass = bypassNow
		return
	}

	// Either not bypassed, bypass just changed (flush the delay lines),
	// or the channel counts don't support a pure short-circuit — run
	// the plugin; on a 1-in-1-out edge block, crossfadeToDry/
	// crossfadeFromDry below blend dry and wet signal.
	e.proc.Process(e.ctx)

	if bypassNow && e.bypassChangedThisBlock && oneInOneOut {
		crossfadeToDry(e.ctx.Output[0], e.ctx.Input[0])
	} else if !bypassNow && e.bypassChangedThisBlock && oneInOneOut {
		crossfadeFromDry(e.ctx.Output[0], e.ctx.Input[0])
	} else if bypassNow && !oneInOneOut {
		e.ctx.Silence()
	}

	e.lastBypass = bypassNow
}

// crossfadeToDry linearly ramps wet (out) toward dry (in) across the
// block, used the block bypass turns on.
func crossfadeToDry(out, in []float32) {
	n := len(out)
	if n == 0 {
		return
	}
	for i := range out {
		t := float32(i+1) / float32(n)
		out[i] = out[i]*(1-t) + in[i]*t
	}
}

// crossfadeFromDry is the inverse: ramps from dry toward wet across
// the block bypass turns off.
func crossfadeFromDry(out, in []float32) {
	n := len(out)
	if n == 0 {
		return
	}
	for i := range out {
		t := float32(i+1) / float32(n)
		out[i] = in[i]*(1-t) + out[i]*t
	}
}

// RequestPatchProperty and GatherPatchProperties forward to the
// wrapped processor if it implements PatchPropertyCarrier, per §4.E.
func (e *Instance) RequestPatchProperty(urid string) {
	if c, ok := e.proc.(plugin.PatchPropertyCarrier); ok {
		c.RequestPatchProperty(urid)
	}
}

func (e *Instance) GatherPatchProperties() map[string][]byte {
	if c, ok := e.proc.(plugin.PatchPropertyCarrier); ok {
		return c.GatherPatchProperties()
	}
	return nil
}

// Controls exposes the wrapped processor's port registry, used by
// MIDI-binding resolution and the control plane.
func (e *Instance) Controls() *param.Registry { return e.proc.Controls() }

// LatencySamples forwards the wrapped processor's reported latency.
func (e *Instance) LatencySamples() int { return e.proc.LatencySamples() }
