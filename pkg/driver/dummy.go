package driver

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/basswood-audio/pedalengine/pkg/control"
	"github.com/basswood-audio/pedalengine/pkg/crashguard"
	"github.com/basswood-audio/pedalengine/pkg/diag"
	"github.com/basswood-audio/pedalengine/pkg/midi"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/ringbuf"
)

// DummyDriver generates silence in place of real hardware and paces
// blocks with a timer, grounded on the reference implementation's
// DummyAudioDriver: useful for running the engine headless (CI, dev
// boxes without an audio interface) while exercising the exact same
// realtime loop shape as the hardware-backed driver.
type DummyDriver struct {
	cfg     Config
	runtime *pedalboard.Runtime
	plane   *control.Plane
	pair    *ringbuf.Pair
	router  *midi.Router
	guard   *crashguard.Guard
	seq     MidiSequencer

	terminate atomic.Bool
	wg        sync.WaitGroup
	log       *diag.Logger

	guardScope *crashguard.Scope

	inBuf, outBuf [][]float32
	cmdScratch    [control.HostCommandScratchSize]byte
}

// NewDummyDriver wires a dummy driver against an already-constructed
// runtime and control plane; both are shared with the host thread.
func NewDummyDriver(runtime *pedalboard.Runtime, plane *control.Plane, pair *ringbuf.Pair, router *midi.Router, guard *crashguard.Guard) *DummyDriver {
	return &DummyDriver{
		runtime: runtime,
		plane:   plane,
		pair:    pair,
		router:  router,
		guard:   guard,
		log:     diag.Root().With("dummyAudioDriver"),
	}
}

func (d *DummyDriver) Open(cfg Config) error {
	d.cfg = cfg
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

// Activate brackets the realtime cycle per §4.J: the crash count is
// incremented and flushed once, on entry to the first live block, and
// only cleared by a clean Deactivate.
func (d *DummyDriver) Activate(channelSelection []int) error {
	scope, err := d.guard.Enter()
	if err != nil {
		return err
	}
	d.guardScope = scope

	d.wg.Add(1)
	go d.run()
	return nil
}

func (d *DummyDriver) run() {
	defer d.wg.Done()
	blockDuration := time.Duration(float64(d.cfg.BlockSize) / d.cfg.SampleRate * float64(time.Second))
	ticker := time.NewTicker(blockDuration)
	defer ticker.Stop()

	for !d.terminate.Load() {
		<-ticker.C
		d.runBlock()
	}
	// One final zero-input pass so downstream teardown observes a
	// consistent state, per §4.B's cancellation contract.
	for ch := range d.inBuf {
		for i := range d.inBuf[ch] {
			d.inBuf[ch][i] = 0
		}
	}
	d.runtime.Live().Run(d.inBuf, d.outBuf, d.cfg.BlockSize, 0, 0)
}

func (d *DummyDriver) runBlock() {
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
}

// Deactivate stops the block loop and, on this clean shutdown path,
// clears the crash count per §4.J ("cleared on normal shutdown").
func (d *DummyDriver) Deactivate() {
	d.terminate.Store(true)
	d.wg.Wait()
	if d.guardScope != nil {
		if err := d.guardScope.Close(); err != nil {
			d.log.Error("crashguard clear failed", "error", err)
		}
		d.guardScope = nil
	}
}

func (d *DummyDriver) Close() error { return nil }

func (d *DummyDriver) SetMidiSequencer(seq MidiSequencer) { d.seq = seq }

func (d *DummyDriver) FormatDescription() string {
	return "Dummy " + formatSummary(d.cfg)
}

func formatSummary(cfg Config) string {
	return "rate=" + strconv.Itoa(int(cfg.SampleRate)) + " block=" + strconv.Itoa(cfg.BlockSize)
}
