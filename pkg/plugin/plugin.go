// Package plugin defines the interface a hosted effect presents to the
// engine. Plugin discovery and binary loading are external collaborators
// (§1 Non-goals: the core does not interpret plugin-binary formats) — by
// the time the engine sees a Processor, something outside this module
// has already resolved a plugin URI to a concrete Go value satisfying
// this interface. Built-in processors in pkg/dsp implement it directly
// and stand in for third-party plugins in tests.
package plugin

import (
	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/process"
)

// Descriptor is the minimal shape of an externally-discovered plugin.
// Neither Prepare nor any engine package consults it.
type Descriptor struct {
	URI          string
	Name         string
	AudioInputs  int
	AudioOutputs int
}

// Processor is the audio-processing contract a hosted effect
// implements. None of its methods may allocate once Prepare has
// returned; Process in particular runs on the realtime thread.
type Processor interface {
	// Prepare is called once, off the realtime thread, before the
	// effect is added to a live pedalboard. Allocations are allowed
	// here and nowhere else.
	Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error

	// Activate and Deactivate are realtime-safe and idempotent,
	// matching the EffectInstance state machine in §3.
	Activate()
	Deactivate()

	// Process runs one block. ctx.Input/ctx.Output are already sized
	// to the negotiated channel counts and ctx.NumFrames.
	Process(ctx *process.Context)

	// Controls returns the effect's control-port registry.
	Controls() *param.Registry

	// LatencySamples reports any algorithmic delay the effect
	// introduces (0 if none), used by the pedalboard to bound swap
	// latency per the §8 boundary behaviors.
	LatencySamples() int
}

// PatchPropertyCarrier is an optional interface for effects that manage
// non-numeric state (file paths, binary blobs) via atom-style messages
// rather than scalar control ports, per §4.E's request_patch_property /
// gather_patch_properties operations.
type PatchPropertyCarrier interface {
	RequestPatchProperty(urid string)
	GatherPatchProperties() map[string][]byte
}
