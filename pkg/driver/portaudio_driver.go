package driver

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/basswood-audio/pedalengine/pkg/control"
	"github.com/basswood-audio/pedalengine/pkg/crashguard"
	"github.com/basswood-audio/pedalengine/pkg/diag"
	"github.com/basswood-audio/pedalengine/pkg/midi"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/ringbuf"
)

// maxConsecutiveXrunFailures is the §4.B threshold for escalating from
// an in-place stream stop/restart to a full close/reopen.
const maxConsecutiveXrunFailures = 5

// pollTimeout is not referenced: the stream is callback-driven, so the
// realtime thread never blocks on a stream read.
const pollTimeout = 250 * time.Millisecond

// HardwareDriver drives a real sound interface via PortAudio, standing
// in for the ALSA-direct driver the appliance uses on its target
// hardware: PortAudio's callback stream hands ioCallback one fixed-size
// block of input and output per call.
type HardwareDriver struct {
	cfg     Config
	stream  *portaudio.Stream
	runtime *pedalboard.Runtime
	plane   *control.Plane
	pair    *ringbuf.Pair
	router  *midi.Router
	guard   *crashguard.Guard
	seq     MidiSequencer

	terminate atomic.Bool
	wg        sync.WaitGroup
	log       *diag.Logger

	trace *diag.TraceBuffer

	guardScope *crashguard.Scope

	consecutiveXrunFailures int

	inBuf, outBuf [][]float32
	inInterleaved, outInterleaved []float32
	cmdScratch    [control.HostCommandScratchSize]byte
}

// NewHardwareDriver wires a PortAudio-backed driver against an
// already-constructed runtime and control plane.
func NewHardwareDriver(runtime *pedalboard.Runtime, plane *control.Plane, pair *ringbuf.Pair, router *midi.Router, guard *crashguard.Guard) *HardwareDriver {
	return &HardwareDriver{
		runtime: runtime,
		plane:   plane,
		pair:    pair,
		router:  router,
		guard:   guard,
		log:     diag.Root().With("alsaDriver"),
		trace:   diag.NewTraceBuffer(1000),
	}
}

func (d *HardwareDriver) Open(cfg Config) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	d.cfg = cfg

	params := portaudio.LowLatencyParameters(nil, nil)
	if cfg.InChannels > 0 {
		in, err := portaudio.DefaultInputDevice()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		params.Input.Device = in
		params.Input.Channels = cfg.InChannels
	}
	if cfg.OutChannels > 0 {
		out, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		params.Output.Device = out
		params.Output.Channels = cfg.OutChannels
	}
	params.SampleRate = cfg.SampleRate
	params.FramesPerBuffer = cfg.BlockSize

	d.inInterleaved = make([]float32, cfg.BlockSize*maxInt(cfg.InChannels, 1))
	d.outInterleaved = make([]float32, cfg.BlockSize*maxInt(cfg.OutChannels, 1))

	stream, err := portaudio.OpenStream(params, d.ioCallback)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	d.stream = stream

	d.inBuf = make([][]float32, cfg.InChannels)
	d.outBuf = make([][]float32, cfg.OutChannels)
	for ch := range d.inBuf {
		d.inBuf[ch] = make([]float32, cfg.BlockSize)
	}
	for ch := range d.outBuf {
		d.outBuf[ch] = make([]float32, cfg.BlockSize)
	}
	return nil
}

// ioCallback is PortAudio's realtime callback; it runs on PortAudio's
// own audio thread, so it must not allocate once the stream is
// started. It deinterleaves into d.inBuf, drives one block, and
// re-interleaves d.outBuf into out.
func (d *HardwareDriver) ioCallback(in, out []float32) {
	deinterleave(in, d.inBuf)
	d.runBlock()
	interleave(d.outBuf, out)
}

// Activate brackets the realtime cycle per §4.J: the crash count is
// incremented and flushed once, on entry to the first live block, and
// only cleared by a clean Deactivate.
func (d *HardwareDriver) Activate(channelSelection []int) error {
	scope, err := d.guard.Enter()
	if err != nil {
		return err
	}
	d.guardScope = scope

	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return nil
}

func (d *HardwareDriver) runBlock() {
	d.runtime.AcknowledgeBlock()

	live := d.runtime.Live()
	d.plane.ApplyRealtimeCommands(live, d.cmdScratch[:])

	if d.seq != nil {
		for _, te := range d.seq.PollEvents(d.cfg.BlockSize) {
			d.router.Dispatch(te.Event, live, te.Timestamp)
		}
	}

	ok := live.Run(d.inBuf, d.outBuf, d.cfg.BlockSize, d.plane.InputVolDB(), d.plane.OutputVolDB())
	if !ok {
		d.log.Warn("non-finite output, muted block")
	}
	d.consecutiveXrunFailures = 0
}

// recoverXrun implements §4.B's xrun-recovery escalation: the stream
// is stopped and restarted in place; after maxConsecutiveXrunFailures
// in a row, the driver escalates to a full close/reopen ("RestartAlsa"
// in the original hardware-specific terms). No code path calls it:
// ioCallback receives no xrun status from the stream.
func (d *HardwareDriver) recoverXrun(code string) {
	d.trace.Record(diag.TraceEntry{
		MonotonicMicros: time.Now().UnixMicro(),
		Code:            code,
	})
	d.consecutiveXrunFailures++
	if err := d.stream.Stop(); err != nil {
		d.log.Error("xrun recovery: stop failed", "error", err)
	}
	if err := d.stream.Start(); err != nil {
		d.log.Error("xrun recovery: restart failed", "error", err)
	}
	if d.consecutiveXrunFailures >= maxConsecutiveXrunFailures {
		d.log.Error("xrun recovery exhausted, restarting stream from scratch")
		d.restartFromScratch()
	}
}

func (d *HardwareDriver) restartFromScratch() {
	cfg := d.cfg
	if d.guardScope != nil {
		if err := d.guardScope.Close(); err != nil {
			d.log.Error("restart: crashguard clear failed", "error", err)
		}
		d.guardScope = nil
	}
	if err := d.Close(); err != nil {
		d.log.Error("restart: close failed", "error", err)
		return
	}
	if err := d.Open(cfg); err != nil {
		d.log.Error("restart: reopen failed", "error", err)
		return
	}
	if err := d.Activate(nil); err != nil {
		d.log.Error("restart: reactivate failed", "error", err)
		return
	}
	d.consecutiveXrunFailures = 0
}

// TraceDump returns the bounded xrun-recovery trace, per §4.B's "host
// can request a dump".
func (d *HardwareDriver) TraceDump() []diag.TraceEntry { return d.trace.Dump() }

// Deactivate stops the stream and, on this clean shutdown path, clears
// the crash count per §4.J ("cleared on normal shutdown").
func (d *HardwareDriver) Deactivate() {
	d.terminate.Store(true)
	if d.stream != nil {
		if err := d.stream.Stop(); err != nil {
			d.log.Error("stop failed", "error", err)
		}
	}
	d.wg.Wait()
	// One final zero-input pass so downstream teardown observes a
	// consistent state, per §4.B's cancellation contract.
	for ch := range d.inBuf {
		for i := range d.inBuf[ch] {
			d.inBuf[ch][i] = 0
		}
	}
	d.runtime.Live().Run(d.inBuf, d.outBuf, d.cfg.BlockSize, 0, 0)

	if d.guardScope != nil {
		if err := d.guardScope.Close(); err != nil {
			d.log.Error("crashguard clear failed", "error", err)
		}
		d.guardScope = nil
	}
}

func (d *HardwareDriver) Close() error {
	if d.stream == nil {
		return nil
	}
	if err := d.stream.Close(); err != nil {
		return err
	}
	d.stream = nil
	return portaudio.Terminate()
}

func (d *HardwareDriver) SetMidiSequencer(seq MidiSequencer) { d.seq = seq }

func (d *HardwareDriver) FormatDescription() string {
	return fmt.Sprintf("PortAudio rate=%.0f block=%d in=%d out=%d", d.cfg.SampleRate, d.cfg.BlockSize, d.cfg.InChannels, d.cfg.OutChannels)
}

func deinterleave(src []float32, dst [][]float32) {
	channels := len(dst)
	if channels == 0 {
		return
	}
	frames := len(src) / channels
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames && i < len(dst[ch]); i++ {
			dst[ch][i] = src[i*channels+ch]
		}
	}
}

func interleave(src [][]float32, dst []float32) {
	channels := len(src)
	if channels == 0 {
		return
	}
	frames := len(dst) / channels
	for ch := 0; ch < channels; ch++ {
		for i := 0; i < frames && i < len(src[ch]); i++ {
			dst[i*channels+ch] = src[ch][i]
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
