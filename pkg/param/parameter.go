// Package param manages the control ports exposed by a hosted effect:
// plain (non-normalized) values written by the realtime thread and read
// by the control plane, plus the ordered registry a pedalboard walks
// when it needs to enumerate an effect's controls.
package param

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Flags mirror the automatable/hidden/enum bits a plugin-descriptor
// would carry for a control port.
const (
	CanAutomate uint32 = 1 << iota
	IsReadOnly
	IsToggle
	IsEnum
	IsHidden
)

// Port describes one control port on a hosted effect. Values are kept
// in plain units (volts, dB, Hz — whatever the port's native range is)
// rather than normalized 0-1, per the engine's data model: control_values
// are "current plain (non-normalized) values".
type Port struct {
	Symbol       string
	Name         string
	Unit         string
	Min          float64
	Max          float64
	Default      float64
	StepCount    int32 // 0 = continuous
	Flags        uint32

	// value is stored as float64 bits for lock-free atomic access from
	// the realtime thread; the control plane never writes it directly,
	// only through the ringbuffer-backed parameter queue.
	value uint64
}

// NewPort creates a port initialized to its default value.
func NewPort(symbol, name string, min, max, def float64) *Port {
	p := &Port{Symbol: symbol, Name: name, Min: min, Max: max, Default: def, Flags: CanAutomate}
	p.store(def)
	return p
}

func (p *Port) store(v float64) {
	atomic.StoreUint64(&p.value, math.Float64bits(clamp(v, p.Min, p.Max)))
}

// Value returns the current plain value. Safe to call from any thread.
func (p *Port) Value() float64 {
	return math.Float64frombits(atomic.LoadUint64(&p.value))
}

// SetValue writes a new plain value. Only the realtime thread (or a
// Prepare-time initializer, before the effect is live) may call this;
// non-realtime callers must go through an effect's parameter queue.
func (p *Port) SetValue(v float64) {
	p.store(v)
}

// Normalized returns the 0-1 normalized form of the current value.
func (p *Port) Normalized() float64 {
	if p.Max <= p.Min {
		return 0
	}
	return (p.Value() - p.Min) / (p.Max - p.Min)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Registry is the ordered set of control ports an effect exposes.
// Lookups happen on both the realtime thread (by symbol, once per
// parameter-queue drain) and the host thread (MIDI binding resolution,
// control-plane snapshots), so access is guarded by a RWMutex; the
// mutex is only ever taken outside the per-sample loop.
type Registry struct {
	mu     sync.RWMutex
	ports  map[string]*Port
	order  []string
}

// NewRegistry creates an empty port registry.
func NewRegistry() *Registry {
	return &Registry{ports: make(map[string]*Port)}
}

// Add registers one or more ports, preserving declaration order.
// Duplicate symbols are ignored.
func (r *Registry) Add(ports ...*Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range ports {
		if _, exists := r.ports[p.Symbol]; exists {
			continue
		}
		r.ports[p.Symbol] = p
		r.order = append(r.order, p.Symbol)
	}
}

// Get looks up a port by symbol.
func (r *Registry) Get(symbol string) *Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ports[symbol]
}

// ByIndex looks up a port by its declaration-order index.
func (r *Registry) ByIndex(i int) *Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.order) {
		return nil
	}
	return r.ports[r.order[i]]
}

// Count returns the number of registered ports.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// All returns a snapshot slice of every port, in declaration order.
func (r *Registry) All() []*Port {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Port, len(r.order))
	for i, sym := range r.order {
		out[i] = r.ports[sym]
	}
	return out
}

// Change is a queued write destined for one port, held in an effect
// instance's parameter queue.
type Change struct {
	Symbol string
	Value  float64
}

func (c Change) String() string {
	return fmt.Sprintf("Change{%s=%g}", c.Symbol, c.Value)
}
