package midi

import (
	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
)

// MappingType is the binding behavior §4.G defines for one MidiBinding.
type MappingType int

const (
	Linear MappingType = iota
	Circular
	Momentary
	Latched
	Trigger
	TapTempo
)

// Timestamp is a monotonic {seconds, nanoseconds} pair from the
// driver's clock source. The zero value (0,0) is the tap-tempo
// sentinel for "no prior event".
type Timestamp struct {
	Seconds     int64
	Nanoseconds int64
}

func (t Timestamp) isEmpty() bool { return t.Seconds == 0 && t.Nanoseconds == 0 }

// Tap-tempo constants per §4.G: taps spaced further apart than this
// reset the estimate instead of contributing to it, the smoothed bpm
// tracks raw taps with this damping factor, and a raw tap whose bpm
// drifts from the previous raw tap by more than this fraction also
// resets instead of smoothing through the outlier.
const (
	tapTempoResetInterval = 2.0
	tapTempoAlpha         = 0.25
	tapTempoMaxDrift      = 0.15
)

// Sub returns t-other as a signed interval in seconds.
func (t Timestamp) Sub(other Timestamp) float64 {
	return float64(t.Seconds-other.Seconds) + float64(t.Nanoseconds-other.Nanoseconds)/1e9
}

// BindingKey identifies the MIDI message a binding reacts to.
type BindingKey struct {
	Kind       KeyKind
	Channel    uint8
	Controller uint8 // CC number, or note number for KeyNote
}

type KeyKind int

const (
	KeyCC KeyKind = iota
	KeyNote
	KeyProgramChange
)

// Binding is one MidiBinding from §3: a MIDI key mapped to one
// effect's control port via the mapping semantics in §4.G.
type Binding struct {
	Key            BindingKey
	InstanceID     uint64
	ControlSymbol  string
	Mapping        MappingType
	Min, Max       float64

	// resolved at load time
	resolved       bool
	portIndex      uint32
	stepCount      int32
	isToggle       bool

	lastValue           float64
	lastValueIncreasing  bool
	lastTapTimestamp     Timestamp
	lastTapBPM           float64
	smoothedBPM          float64
}

// Router owns the active binding set for the live pedalboard and
// dispatches MIDI events from the driver's per-block event list onto
// control-port writes.
type Router struct {
	bindings []*Binding
}

// NewRouter creates an empty router; Load installs bindings for a
// newly-loaded pedalboard.
func NewRouter() *Router { return &Router{} }

// Load resolves every binding's (instance_id, control_symbol) against
// board, caching the port's range/step/toggle metadata, per §4.G's
// "binding resolution happens at pedalboard load time". Bindings whose
// instance is absent from board are kept but marked unresolved, and
// are silently skipped by Dispatch until a future Load resolves them.
func (r *Router) Load(bindings []*Binding, board *pedalboard.Board) {
	for _, b := range bindings {
		b.resolved = false
		inst := board.InstanceByID(b.InstanceID)
		if inst == nil {
			continue
		}
		ports := inst.Controls().All()
		for i, p := range ports {
			if p.Symbol != b.ControlSymbol {
				continue
			}
			b.portIndex = uint32(i)
			b.stepCount = p.StepCount
			b.isToggle = p.Flags&param.IsToggle != 0
			b.resolved = true
			break
		}
	}
	r.bindings = bindings
}

// Dispatch applies one MIDI event to every resolved binding matching
// its key, in binding order. It runs on the realtime thread as part of
// the driver's per-block MIDI poll (§4.B step 4), so resolved control
// writes go straight to the port rather than through the parameter
// queue.
func (r *Router) Dispatch(ev Event, board *pedalboard.Board, now Timestamp) {
	for _, b := range r.bindings {
		if !b.resolved {
			continue
		}
		if !matches(b.Key, ev) {
			continue
		}
		inst := board.InstanceByID(b.InstanceID)
		if inst == nil {
			continue
		}
		value, ok := b.apply(ev, now)
		if !ok {
			continue
		}
		inst.SetControl(b.ControlSymbol, value, true)
	}
}

func matches(key BindingKey, ev Event) bool {
	switch e := ev.(type) {
	case ControlChangeEvent:
		return key.Kind == KeyCC && key.Channel == e.EventChannel && key.Controller == e.Controller
	case NoteOnEvent:
		return key.Kind == KeyNote && key.Channel == e.EventChannel && key.Controller == e.NoteNumber
	case NoteOffEvent:
		return key.Kind == KeyNote && key.Channel == e.EventChannel && key.Controller == e.NoteNumber
	case ProgramChangeEvent:
		return key.Kind == KeyProgramChange && key.Channel == e.EventChannel
	default:
		return false
	}
}

// apply implements the six mapping semantics of §4.G and updates the
// binding's transient state. Returns ok=false if the event carries no
// applicable value (e.g. a note-off reaching a Trigger binding).
func (b *Binding) apply(ev Event, now Timestamp) (float64, bool) {
	switch b.Mapping {
	case Linear:
		cc, ok := ccValue(ev)
		if !ok {
			return 0, false
		}
		v := b.Min + (float64(cc)/127.0)*(b.Max-b.Min)
		v = b.quantize(v)
		b.lastValue = v
		return v, true

	case Circular:
		cc, ok := ccValue(ev)
		if !ok {
			return 0, false
		}
		delta := (float64(cc) - 64.0) / 127.0
		step := b.Max - b.Min
		v := clampRange(b.lastValue+delta*step, b.Min, b.Max)
		b.lastValue = v
		return v, true

	case Momentary:
		switch e := ev.(type) {
		case NoteOnEvent:
			b.lastValue = b.Max
			return b.Max, true
		case NoteOffEvent:
			b.lastValue = b.Min
			return b.Min, true
		case ControlChangeEvent:
			if e.Value >= 64 {
				b.lastValue = b.Max
			} else {
				b.lastValue = b.Min
			}
			return b.lastValue, true
		}
		return 0, false

	case Latched:
		switch e := ev.(type) {
		case NoteOnEvent:
			if b.lastValue == b.Max {
				b.lastValue = b.Min
			} else {
				b.lastValue = b.Max
			}
			return b.lastValue, true
		case ControlChangeEvent:
			if e.Value >= 64 {
				if b.lastValue == b.Max {
					b.lastValue = b.Min
				} else {
					b.lastValue = b.Max
				}
				return b.lastValue, true
			}
		}
		return 0, false

	case Trigger:
		switch ev.(type) {
		case NoteOnEvent:
			return b.Max, true
		}
		return 0, false

	case TapTempo:
		switch ev.(type) {
		case NoteOnEvent:
		case ControlChangeEvent:
		default:
			return 0, false
		}
		if b.lastTapTimestamp.isEmpty() {
			b.lastTapTimestamp = now
			return 0, false
		}
		interval := now.Sub(b.lastTapTimestamp)
		b.lastTapTimestamp = now
		if interval <= 0 || interval > tapTempoResetInterval {
			b.lastTapBPM = 0
			b.smoothedBPM = 0
			return 0, false
		}
		bpm := 60.0 / interval
		if b.lastTapBPM != 0 && driftFraction(bpm, b.lastTapBPM) > tapTempoMaxDrift {
			b.lastTapBPM = bpm
			b.smoothedBPM = 0
			return 0, false
		}
		b.lastTapBPM = bpm
		if b.smoothedBPM == 0 {
			b.smoothedBPM = bpm
		} else {
			b.smoothedBPM = tapTempoAlpha*bpm + (1-tapTempoAlpha)*b.smoothedBPM
		}
		v := clampRange(b.smoothedBPM, b.Min, b.Max)
		b.lastValue = v
		return v, true
	}
	return 0, false
}

func (b *Binding) quantize(v float64) float64 {
	if b.isToggle {
		mid := (b.Min + b.Max) / 2
		if v >= mid {
			return b.Max
		}
		return b.Min
	}
	if b.stepCount > 1 {
		step := (b.Max - b.Min) / float64(b.stepCount-1)
		idx := (v - b.Min) / step
		rounded := float64(int(idx+0.5)) * step
		return clampRange(b.Min+rounded, b.Min, b.Max)
	}
	return v
}

func ccValue(ev Event) (uint8, bool) {
	if cc, ok := ev.(ControlChangeEvent); ok {
		return cc.Value, true
	}
	return 0, false
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// driftFraction returns |a-b|/b, the fractional change between two
// consecutive raw tap-tempo bpm readings.
func driftFraction(a, b float64) float64 {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d / b
}
