// Package control implements component H: the non-realtime API surface
// a client UI or CLI drives. Every mutating call either acts directly
// on the host-owned pedalboard.Runtime (pedalboard swaps) or serializes
// a message onto the Host->RT ring for the driver's realtime loop to
// apply at the top of its next block.
package control

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/basswood-audio/pedalengine/pkg/diag"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/ringbuf"
)

// HostCommandScratchSize bounds the per-block Host->RT frame the
// realtime thread will decode without allocating; larger frames (only
// possible for RequestPatchProperty's urid) are dropped and logged.
const HostCommandScratchSize = 256

// ErrBusy surfaces a Host->RT ring overflow to the caller per §4.C:
// "overflow in Host->RT fails the calling API with Busy."
var ErrBusy = errors.New("control: busy")

// Plane is the engine's single control-plane instance. It owns no
// audio state itself — everything it does either enqueues on the ring
// pair the driver drains each block, or swaps the runtime's live
// pedalboard pointer.
type Plane struct {
	runtime *pedalboard.Runtime
	pair    *ringbuf.Pair
	log     *diag.Logger

	mu         sync.RWMutex
	vu         map[uint64]map[uint32]ringbuf.VUPayload
	readback   map[uint64]map[uint32]float32
	presets    []string

	inputVolDBBits  atomic.Uint64
	outputVolDBBits atomic.Uint64
}

// New creates a control plane over an already-constructed runtime and
// ring pair (the driver holds the other end of pair).
func New(runtime *pedalboard.Runtime, pair *ringbuf.Pair) *Plane {
	return &Plane{
		runtime:  runtime,
		pair:     pair,
		log:      diag.Root().With("control"),
		vu:       make(map[uint64]map[uint32]ringbuf.VUPayload),
		readback: make(map[uint64]map[uint32]float32),
	}
}

// SetPedalboard begins a swap to a fully off-thread-built board, per
// §4.F's swap protocol. Returns ErrBusy if a previous swap hasn't
// reached quiescence.
func (p *Plane) SetPedalboard(next *pedalboard.Board) error {
	if err := p.runtime.Swap(next); err != nil {
		return ErrBusy
	}
	return nil
}

// SetControl enqueues a parameter change for instanceID's port, by
// index, onto the Host->RT ring.
func (p *Plane) SetControl(instanceID uint64, portIndex uint32, value float32) error {
	payload := ringbuf.ParamPayload{InstanceID: instanceID, PortIndex: portIndex, Value: value}
	if err := p.pair.FromHost.WriteFrame(ringbuf.TagSetControl, payload.Marshal()); err != nil {
		return ErrBusy
	}
	return nil
}

// SetBypass enqueues a bypass toggle for instanceID.
func (p *Plane) SetBypass(instanceID uint64, bypass bool) error {
	payload := make([]byte, 9)
	putU64(payload[0:8], instanceID)
	if bypass {
		payload[8] = 1
	}
	if err := p.pair.FromHost.WriteFrame(ringbuf.TagSetBypass, payload); err != nil {
		return ErrBusy
	}
	return nil
}

// SetInputVolDB and SetOutputVolDB enqueue a new dezipper target for
// the board's input/output volume ramps.
func (p *Plane) SetInputVolDB(db float32) error {
	return p.sendFloatCommand(ringbuf.TagSetInputVolDB, db)
}

func (p *Plane) SetOutputVolDB(db float32) error {
	return p.sendFloatCommand(ringbuf.TagSetOutputVolDB, db)
}

func (p *Plane) sendFloatCommand(tag ringbuf.Tag, v float32) error {
	payload := make([]byte, 4)
	putF32(payload, v)
	if err := p.pair.FromHost.WriteFrame(tag, payload); err != nil {
		return ErrBusy
	}
	return nil
}

// RequestPatchProperty enqueues a patch-property request on the
// Host->RT ring; ApplyRealtimeCommands applies it on the realtime
// thread by calling the instance's RequestPatchProperty.
func (p *Plane) RequestPatchProperty(instanceID uint64, urid string) error {
	payload := make([]byte, 8+len(urid))
	putU64(payload[0:8], instanceID)
	copy(payload[8:], urid)
	if err := p.pair.FromHost.WriteFrame(ringbuf.TagRequestPatchProp, payload); err != nil {
		return ErrBusy
	}
	return nil
}

// ApplyRealtimeCommands drains every pending Host->RT frame and applies
// it directly to board, per §4.H's "applied at the top of the next
// block" ordering guarantee. It runs on the realtime thread: scratch is
// a caller-owned, reused buffer so no frame decode allocates.
// Commands addressing an instance absent from board are silently
// ignored, per §4.G/§4.H.
func (p *Plane) ApplyRealtimeCommands(board *pedalboard.Board, scratch []byte) {
	for {
		before := p.pair.FromHost.Len()
		if before == 0 {
			return
		}
		tag, payload, ok := p.pair.FromHost.ReadFrameInto(scratch)
		if !ok {
			if p.pair.FromHost.Len() < before {
				// Consumed (and discarded) a frame too big for scratch.
				p.log.Warn("dropped oversized host command", "tag", tag)
				continue
			}
			return // a partial frame is still filling up
		}
		p.applyFrame(tag, payload, board)
	}
}

func (p *Plane) applyFrame(tag ringbuf.Tag, payload []byte, board *pedalboard.Board) {
	switch tag {
	case ringbuf.TagSetControl:
		if len(payload) < 16 {
			return
		}
		pr := ringbuf.UnmarshalParam(payload)
		inst := board.InstanceByID(pr.InstanceID)
		if inst == nil {
			return
		}
		port := inst.Controls().ByIndex(int(pr.PortIndex))
		if port == nil {
			return
		}
		inst.SetControl(port.Symbol, float64(pr.Value), true)

	case ringbuf.TagSetBypass:
		if len(payload) < 9 {
			return
		}
		instanceID := getU64(payload[0:8])
		inst := board.InstanceByID(instanceID)
		if inst == nil {
			return
		}
		inst.SetBypass(payload[8] != 0)

	case ringbuf.TagSetInputVolDB:
		if len(payload) < 4 {
			return
		}
		p.inputVolDBBits.Store(math.Float64bits(float64(getF32(payload))))

	case ringbuf.TagSetOutputVolDB:
		if len(payload) < 4 {
			return
		}
		p.outputVolDBBits.Store(math.Float64bits(float64(getF32(payload))))

	case ringbuf.TagRequestPatchProp:
		if len(payload) < 8 {
			return
		}
		instanceID := getU64(payload[0:8])
		inst := board.InstanceByID(instanceID)
		if inst == nil {
			return
		}
		inst.RequestPatchProperty(string(payload[8:]))
	}
}

// InputVolDB and OutputVolDB report the most recent dezip targets set
// via SetInputVolDB/SetOutputVolDB, for the driver to pass into
// Board.Run each block.
func (p *Plane) InputVolDB() float64  { return math.Float64frombits(p.inputVolDBBits.Load()) }
func (p *Plane) OutputVolDB() float64 { return math.Float64frombits(p.outputVolDBBits.Load()) }

// Pump drains every pending RT->Host frame and updates the in-memory
// VU/readback snapshots. The host's monitoring loop calls this
// periodically (it is not safe to call concurrently with itself).
func (p *Plane) Pump() {
	for {
		frame, ok := p.pair.ToHost.ReadFrame()
		if !ok {
			return
		}
		switch frame.Tag {
		case ringbuf.TagVUSample:
			vu := ringbuf.UnmarshalVU(frame.Payload)
			p.mu.Lock()
			if p.vu[vu.InstanceID] == nil {
				p.vu[vu.InstanceID] = make(map[uint32]ringbuf.VUPayload)
			}
			p.vu[vu.InstanceID][vu.Channel] = vu
			p.mu.Unlock()
		case ringbuf.TagParamReadback:
			pr := ringbuf.UnmarshalParam(frame.Payload)
			p.mu.Lock()
			if p.readback[pr.InstanceID] == nil {
				p.readback[pr.InstanceID] = make(map[uint32]float32)
			}
			p.readback[pr.InstanceID][pr.PortIndex] = pr.Value
			p.mu.Unlock()
		case ringbuf.TagUnderrunCounter:
			p.log.Warn("xrun reported by driver")
		case ringbuf.TagAudioTerminated:
			p.log.Error("audio thread terminated")
		case ringbuf.TagMidiLearned:
			p.log.Info("midi binding learned")
		}
	}
}

// SnapshotVU returns the most recent peak/RMS readings published by
// the realtime thread for instanceID, per channel.
func (p *Plane) SnapshotVU(instanceID uint64) map[uint32]ringbuf.VUPayload {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[uint32]ringbuf.VUPayload, len(p.vu[instanceID]))
	for ch, v := range p.vu[instanceID] {
		out[ch] = v
	}
	return out
}

// GetOutputControl returns the last readback value published for
// instanceID's port, if the realtime thread has published one.
func (p *Plane) GetOutputControl(instanceID uint64, portIndex uint32) (float32, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.readback[instanceID][portIndex]
	return v, ok
}

// ListFactoryPresets and RegisterFactoryPreset manage the built-in
// preset name list a fresh appliance ships with; this engine's scope
// ends at storing and exposing the names (nothing here loads a preset
// or calls SetPedalboard), since preset JSON persistence itself is an
// external collaborator (§1).
func (p *Plane) ListFactoryPresets() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.presets))
	copy(out, p.presets)
	return out
}

func (p *Plane) RegisterFactoryPreset(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presets = append(p.presets, name)
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func getF32(b []byte) float32 {
	var bits uint32
	for i := 0; i < 4; i++ {
		bits |= uint32(b[i]) << (8 * i)
	}
	return math.Float32frombits(bits)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func putF32(b []byte, v float32) {
	bits := math.Float32bits(v)
	for i := 0; i < 4; i++ {
		b[i] = byte(bits >> (8 * i))
	}
}
