// Package builtin adapts the DSP math in pkg/dsp's subpackages into
// pkg/plugin.Processor implementations, standing in for
// externally-loaded plugin binaries (out of scope per pkg/plugin's doc
// comment) in tests.
package builtin

import (
	"fmt"

	"github.com/basswood-audio/pedalengine/pkg/dsp/delay"
	"github.com/basswood-audio/pedalengine/pkg/dsp/distortion"
	"github.com/basswood-audio/pedalengine/pkg/dsp/dynamics"
	"github.com/basswood-audio/pedalengine/pkg/dsp/filter"
	"github.com/basswood-audio/pedalengine/pkg/dsp/modulation"
	"github.com/basswood-audio/pedalengine/pkg/dsp/reverb"
	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/process"
)

// TubeDrive hosts pkg/dsp/distortion.TubeSaturator, mono in and out.
type TubeDrive struct {
	sat      *distortion.TubeSaturator
	controls *param.Registry
}

// NewTubeDrive builds an unprepared drive effect; Prepare constructs
// the underlying saturator once the sample rate is known.
func NewTubeDrive() *TubeDrive {
	return &TubeDrive{controls: param.NewRegistry()}
}

func (t *TubeDrive) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.TubeDrive: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	t.sat = distortion.NewTubeSaturator(sampleRate)
	t.controls.Add(
		param.NewPort("drive", "Drive", 1.0, 10.0, 2.0),
		param.NewPort("bias", "Bias", -1.0, 1.0, 0.0),
		param.NewPort("mix", "Mix", 0.0, 1.0, 1.0),
		param.NewPort("warmth", "Warmth", 0.0, 1.0, 0.5),
		param.NewPort("harmonics", "Harmonic Balance", 0.0, 1.0, 0.3),
	)
	return nil
}

func (t *TubeDrive) Activate()   {}
func (t *TubeDrive) Deactivate() {}

func (t *TubeDrive) Process(ctx *process.Context) {
	t.sat.SetDrive(t.controls.Get("drive").Value())
	t.sat.SetBias(t.controls.Get("bias").Value())
	t.sat.SetMix(t.controls.Get("mix").Value())
	t.sat.SetWarmth(t.controls.Get("warmth").Value())
	t.sat.SetHarmonicBalance(t.controls.Get("harmonics").Value())

	in, out := ctx.Input[0], ctx.Output[0]
	for i := 0; i < ctx.NumFrames; i++ {
		out[i] = float32(t.sat.Process(float64(in[i])))
	}
}

func (t *TubeDrive) Controls() *param.Registry { return t.controls }
func (t *TubeDrive) LatencySamples() int       { return 0 }

// StereoChorus hosts pkg/dsp/modulation.Chorus, mono in, stereo out.
type StereoChorus struct {
	chorus   *modulation.Chorus
	controls *param.Registry
}

func NewStereoChorus() *StereoChorus {
	return &StereoChorus{controls: param.NewRegistry()}
}

func (c *StereoChorus) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 2 {
		return fmt.Errorf("builtin.StereoChorus: requires mono in/stereo out, got %d/%d", audioIn, audioOut)
	}
	c.chorus = modulation.NewChorus(sampleRate)
	c.controls.Add(
		param.NewPort("rate", "Rate", 0.1, 10.0, 1.5),
		param.NewPort("depth", "Depth", 0.0, 20.0, 5.0),
		param.NewPort("mix", "Mix", 0.0, 1.0, 0.5),
		param.NewPort("feedback", "Feedback", 0.0, 0.9, 0.0),
	)
	return nil
}

func (c *StereoChorus) Activate()   {}
func (c *StereoChorus) Deactivate() {}

func (c *StereoChorus) Process(ctx *process.Context) {
	c.chorus.SetRate(c.controls.Get("rate").Value())
	c.chorus.SetDepth(c.controls.Get("depth").Value())
	c.chorus.SetMix(c.controls.Get("mix").Value())
	c.chorus.SetFeedback(c.controls.Get("feedback").Value())

	in := ctx.Input[0]
	outL, outR := ctx.Output[0], ctx.Output[1]
	for i := 0; i < ctx.NumFrames; i++ {
		l, r := c.chorus.Process(in[i])
		outL[i], outR[i] = l, r
	}
}

func (c *StereoChorus) Controls() *param.Registry { return c.controls }
func (c *StereoChorus) LatencySamples() int       { return 0 }

// HallReverb hosts pkg/dsp/reverb.Freeverb in its stereo configuration.
type HallReverb struct {
	verb     *reverb.Freeverb
	controls *param.Registry
}

func NewHallReverb() *HallReverb {
	return &HallReverb{controls: param.NewRegistry()}
}

func (h *HallReverb) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 2 || audioOut != 2 {
		return fmt.Errorf("builtin.HallReverb: requires stereo in/out, got %d/%d", audioIn, audioOut)
	}
	h.verb = reverb.NewFreeverb(sampleRate)
	h.controls.Add(
		param.NewPort("room_size", "Room Size", 0.0, 1.0, 0.5),
		param.NewPort("damping", "Damping", 0.0, 1.0, 0.5),
		param.NewPort("wet", "Wet Level", 0.0, 1.0, 0.3),
		param.NewPort("dry", "Dry Level", 0.0, 1.0, 1.0),
		param.NewPort("width", "Width", 0.0, 1.0, 1.0),
	)
	return nil
}

func (h *HallReverb) Activate()   {}
func (h *HallReverb) Deactivate() {}

func (h *HallReverb) Process(ctx *process.Context) {
	h.verb.SetRoomSize(h.controls.Get("room_size").Value())
	h.verb.SetDamping(h.controls.Get("damping").Value())
	h.verb.SetWetLevel(h.controls.Get("wet").Value())
	h.verb.SetDryLevel(h.controls.Get("dry").Value())
	h.verb.SetWidth(h.controls.Get("width").Value())

	inL, inR := ctx.Input[0], ctx.Input[1]
	outL, outR := ctx.Output[0], ctx.Output[1]
	for i := 0; i < ctx.NumFrames; i++ {
		l, r := h.verb.ProcessStereo(inL[i], inR[i])
		outL[i], outR[i] = l, r
	}
}

func (h *HallReverb) Controls() *param.Registry { return h.controls }
func (h *HallReverb) LatencySamples() int       { return 0 }

// Squeeze hosts pkg/dsp/dynamics.Compressor, mono in/out.
type Squeeze struct {
	comp     *dynamics.Compressor
	controls *param.Registry
}

func NewSqueeze() *Squeeze {
	return &Squeeze{controls: param.NewRegistry()}
}

func (s *Squeeze) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.Squeeze: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	s.comp = dynamics.NewCompressor(sampleRate)
	s.controls.Add(
		param.NewPort("threshold", "Threshold", -60.0, 0.0, -18.0),
		param.NewPort("ratio", "Ratio", 1.0, 20.0, 4.0),
		param.NewPort("attack", "Attack", 0.0005, 0.25, 0.01),
		param.NewPort("release", "Release", 0.01, 2.0, 0.15),
		param.NewPort("makeup", "Makeup Gain", -12.0, 24.0, 0.0),
	)
	return nil
}

func (s *Squeeze) Activate()   {}
func (s *Squeeze) Deactivate() {}

func (s *Squeeze) Process(ctx *process.Context) {
	s.comp.SetThreshold(s.controls.Get("threshold").Value())
	s.comp.SetRatio(s.controls.Get("ratio").Value())
	s.comp.SetAttack(s.controls.Get("attack").Value())
	s.comp.SetRelease(s.controls.Get("release").Value())
	s.comp.SetMakeupGain(s.controls.Get("makeup").Value())

	s.comp.ProcessBuffer(ctx.Input[0][:ctx.NumFrames], ctx.Output[0][:ctx.NumFrames])
}

func (s *Squeeze) Controls() *param.Registry { return s.controls }
func (s *Squeeze) LatencySamples() int       { return 0 }

// Crusher hosts pkg/dsp/distortion.BitCrusher, mono in/out.
type Crusher struct {
	bc       *distortion.BitCrusher
	controls *param.Registry
}

func NewCrusher() *Crusher { return &Crusher{controls: param.NewRegistry()} }

func (c *Crusher) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.Crusher: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	c.bc = distortion.NewBitCrusher(sampleRate)
	c.controls.Add(
		param.NewPort("bits", "Bit Depth", 1.0, 16.0, 8.0),
		param.NewPort("rate_ratio", "Sample Rate Ratio", 0.01, 1.0, 0.25),
		param.NewPort("mix", "Mix", 0.0, 1.0, 1.0),
		param.NewPort("dither", "Dither", 0.0, 1.0, 0.0),
	)
	return nil
}

func (c *Crusher) Activate()   {}
func (c *Crusher) Deactivate() {}

func (c *Crusher) Process(ctx *process.Context) {
	c.bc.SetBitDepth(int(c.controls.Get("bits").Value()))
	c.bc.SetSampleRateRatio(c.controls.Get("rate_ratio").Value())
	c.bc.SetMix(c.controls.Get("mix").Value())
	c.bc.SetDither(c.controls.Get("dither").Value())

	in, out := ctx.Input[0], ctx.Output[0]
	for i := 0; i < ctx.NumFrames; i++ {
		out[i] = float32(c.bc.Process(float64(in[i])))
	}
}

func (c *Crusher) Controls() *param.Registry { return c.controls }
func (c *Crusher) LatencySamples() int       { return 0 }

// NoiseGate hosts pkg/dsp/dynamics.Gate, mono in/out.
type NoiseGate struct {
	gate     *dynamics.Gate
	controls *param.Registry
}

func NewNoiseGate() *NoiseGate { return &NoiseGate{controls: param.NewRegistry()} }

func (g *NoiseGate) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.NoiseGate: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	g.gate = dynamics.NewGate(sampleRate)
	g.controls.Add(
		param.NewPort("threshold", "Threshold", -80.0, 0.0, -40.0),
		param.NewPort("hysteresis", "Hysteresis", 0.0, 12.0, 3.0),
		param.NewPort("attack", "Attack", 0.0001, 0.1, 0.001),
		param.NewPort("hold", "Hold", 0.0, 1.0, 0.05),
		param.NewPort("release", "Release", 0.001, 2.0, 0.1),
		param.NewPort("range", "Range", -80.0, 0.0, -60.0),
	)
	return nil
}

func (g *NoiseGate) Activate()   {}
func (g *NoiseGate) Deactivate() {}

func (g *NoiseGate) Process(ctx *process.Context) {
	g.gate.SetThreshold(g.controls.Get("threshold").Value())
	g.gate.SetHysteresis(g.controls.Get("hysteresis").Value())
	g.gate.SetAttack(g.controls.Get("attack").Value())
	g.gate.SetHold(g.controls.Get("hold").Value())
	g.gate.SetRelease(g.controls.Get("release").Value())
	g.gate.SetRange(g.controls.Get("range").Value())

	g.gate.ProcessBuffer(ctx.Input[0][:ctx.NumFrames], ctx.Output[0][:ctx.NumFrames])
}

func (g *NoiseGate) Controls() *param.Registry { return g.controls }
func (g *NoiseGate) LatencySamples() int       { return 0 }

// Ceiling hosts pkg/dsp/dynamics.Limiter, mono in/out.
type Ceiling struct {
	lim      *dynamics.Limiter
	controls *param.Registry
}

func NewCeiling() *Ceiling { return &Ceiling{controls: param.NewRegistry()} }

func (c *Ceiling) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.Ceiling: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	c.lim = dynamics.NewLimiter(sampleRate)
	c.controls.Add(
		param.NewPort("threshold", "Threshold", -12.0, 0.0, -1.0),
		param.NewPort("release", "Release", 0.01, 1.0, 0.1),
		param.NewPort("lookahead", "Lookahead", 0.0, 0.01, 0.002),
	)
	return nil
}

func (c *Ceiling) Activate()   {}
func (c *Ceiling) Deactivate() {}

func (c *Ceiling) Process(ctx *process.Context) {
	c.lim.SetThreshold(c.controls.Get("threshold").Value())
	c.lim.SetRelease(c.controls.Get("release").Value())
	c.lim.SetLookahead(c.controls.Get("lookahead").Value())

	c.lim.ProcessBuffer(ctx.Input[0][:ctx.NumFrames], ctx.Output[0][:ctx.NumFrames])
}

func (c *Ceiling) Controls() *param.Registry { return c.controls }
func (c *Ceiling) LatencySamples() int       { return 0 }

// PulseTremolo hosts pkg/dsp/modulation.Tremolo, mono in/out.
type PulseTremolo struct {
	trem     *modulation.Tremolo
	controls *param.Registry
}

func NewPulseTremolo() *PulseTremolo { return &PulseTremolo{controls: param.NewRegistry()} }

func (t *PulseTremolo) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.PulseTremolo: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	t.trem = modulation.NewTremolo(sampleRate)
	t.controls.Add(
		param.NewPort("rate", "Rate", 0.1, 20.0, 4.0),
		param.NewPort("depth", "Depth", 0.0, 1.0, 0.6),
	)
	return nil
}

func (t *PulseTremolo) Activate()   {}
func (t *PulseTremolo) Deactivate() {}

func (t *PulseTremolo) Process(ctx *process.Context) {
	t.trem.SetRate(t.controls.Get("rate").Value())
	t.trem.SetDepth(t.controls.Get("depth").Value())

	t.trem.ProcessBuffer(ctx.Input[0][:ctx.NumFrames], ctx.Output[0][:ctx.NumFrames])
}

func (t *PulseTremolo) Controls() *param.Registry { return t.controls }
func (t *PulseTremolo) LatencySamples() int       { return 0 }

// Echo hosts pkg/dsp/delay.Line as a single-tap feedback delay, mono
// in/out.
type Echo struct {
	line     *delay.Line
	fb       float32
	controls *param.Registry
}

const echoMaxDelaySeconds = 2.0

func NewEcho() *Echo { return &Echo{controls: param.NewRegistry()} }

func (e *Echo) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.Echo: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	e.line = delay.New(echoMaxDelaySeconds, sampleRate)
	e.controls.Add(
		param.NewPort("time_ms", "Delay Time", 1.0, echoMaxDelaySeconds*1000.0, 350.0),
		param.NewPort("feedback", "Feedback", 0.0, 0.95, 0.35),
		param.NewPort("mix", "Mix", 0.0, 1.0, 0.3),
	)
	return nil
}

func (e *Echo) Activate()   {}
func (e *Echo) Deactivate() {}

func (e *Echo) Process(ctx *process.Context) {
	timeMs := e.controls.Get("time_ms").Value()
	feedback := float32(e.controls.Get("feedback").Value())
	mix := float32(e.controls.Get("mix").Value())

	in, out := ctx.Input[0], ctx.Output[0]
	for i := 0; i < ctx.NumFrames; i++ {
		tapped := e.line.ReadMs(timeMs)
		e.line.Write(in[i] + tapped*feedback)
		out[i] = in[i]*(1-mix) + tapped*mix
	}
}

func (e *Echo) Controls() *param.Registry { return e.controls }
func (e *Echo) LatencySamples() int       { return 0 }

// ToneStack hosts pkg/dsp/filter.Biquad configured as a three-band
// shelf/peak tone control, mono in/out.
type ToneStack struct {
	bass, mid, treble *filter.Biquad
	sampleRate        float64
	controls          *param.Registry
}

func NewToneStack() *ToneStack { return &ToneStack{controls: param.NewRegistry()} }

func (t *ToneStack) Prepare(sampleRate float64, maxBlockSize int, audioIn, audioOut int) error {
	if audioIn != 1 || audioOut != 1 {
		return fmt.Errorf("builtin.ToneStack: requires mono in/out, got %d/%d", audioIn, audioOut)
	}
	t.sampleRate = sampleRate
	t.bass = filter.NewBiquad(1)
	t.mid = filter.NewBiquad(1)
	t.treble = filter.NewBiquad(1)
	t.controls.Add(
		param.NewPort("bass", "Bass", -15.0, 15.0, 0.0),
		param.NewPort("mid", "Mid", -15.0, 15.0, 0.0),
		param.NewPort("treble", "Treble", -15.0, 15.0, 0.0),
	)
	return nil
}

func (t *ToneStack) Activate()   {}
func (t *ToneStack) Deactivate() {}

func (t *ToneStack) Process(ctx *process.Context) {
	t.bass.SetLowShelf(t.sampleRate, 120.0, 0.707, t.controls.Get("bass").Value())
	t.mid.SetPeakingEQ(t.sampleRate, 800.0, 0.8, t.controls.Get("mid").Value())
	t.treble.SetHighShelf(t.sampleRate, 3000.0, 0.707, t.controls.Get("treble").Value())

	copy(ctx.Output[0][:ctx.NumFrames], ctx.Input[0][:ctx.NumFrames])
	t.bass.Process(ctx.Output[0][:ctx.NumFrames], 0)
	t.mid.Process(ctx.Output[0][:ctx.NumFrames], 0)
	t.treble.Process(ctx.Output[0][:ctx.NumFrames], 0)
}

func (t *ToneStack) Controls() *param.Registry { return t.controls }
func (t *ToneStack) LatencySamples() int       { return 0 }
