package pedalboard

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned by Swap when a prior LOAD_PEDALBOARD is still
// in flight, per the Open Question resolution: only one pedalboard
// swap may be outstanding at a time.
var ErrBusy = errors.New("pedalboard: swap already in flight")

// Runtime holds the single atomically-swapped live Board a driver's
// realtime thread reads, plus the host-side bookkeeping for the swap
// protocol in §4.F: the host builds off-thread, posts the new pointer,
// and the realtime thread acknowledges a quiescent point before the
// host frees the old board.
type Runtime struct {
	live atomic.Pointer[Board]

	swapInFlight atomic.Bool
	pending      atomic.Pointer[Board]
	quiescent    atomic.Pointer[Board] // old board the RT thread has finished with
}

// NewRuntime starts a runtime with an empty passthrough board live,
// matching the engine's boot-time default before a user pedalboard (or
// the crash guard's forced-empty board) is loaded.
func NewRuntime(channelCount, blockSize int, sampleRate float64) *Runtime {
	r := &Runtime{}
	r.live.Store(Empty(channelCount, blockSize, sampleRate))
	return r
}

// Live returns the currently-live board. Safe to call from the
// realtime thread: it is a single atomic load.
func (r *Runtime) Live() *Board { return r.live.Load() }

// Swap begins a LOAD_PEDALBOARD: it transfers any EffectInstances in
// next that share an instance_id with the currently-live board (the
// caller is expected to have already done this via TransferInstances
// before calling Swap, since Board's plan is compiled at Build time),
// then publishes next as pending for the realtime thread to pick up on
// its next block. Returns ErrBusy if a previous swap hasn't reached
// quiescence yet.
func (r *Runtime) Swap(next *Board) error {
	if !r.swapInFlight.CompareAndSwap(false, true) {
		return ErrBusy
	}
	r.pending.Store(next)
	return nil
}

// AcknowledgeBlock is called once per realtime block, before running
// the live board. If a swap is pending it performs the atomic pointer
// swap, captures the displaced board for the host to reclaim, and
// clears swapInFlight so the next Swap may proceed.
func (r *Runtime) AcknowledgeBlock() {
	next := r.pending.Load()
	if next == nil {
		return
	}
	old := r.live.Swap(next)
	r.pending.Store(nil)
	r.quiescent.Store(old)
	r.swapInFlight.Store(false)
}

// ReclaimQuiescent returns the most recently displaced board, if the
// realtime thread has acknowledged a swap since the last call, so the
// host can free it off-thread. Returns nil if nothing is pending
// reclamation.
func (r *Runtime) ReclaimQuiescent() *Board {
	return r.quiescent.Swap(nil)
}

// TransferInstances walks both trees and returns the set of effect
// instances in next whose instance_id also exists in current, so the
// caller may decide to reuse the already-prepared instance (avoiding
// a Prepare/Activate cycle) instead of rebuilding it from the plugin
// descriptor, per §4.F's "may be transferred across swaps" clause.
func TransferInstances(current, next *Board) map[uint64]bool {
	shared := make(map[uint64]bool)
	if current == nil || next == nil {
		return shared
	}
	currentIDs := make(map[uint64]bool)
	for _, inst := range current.Instances() {
		currentIDs[inst.InstanceID] = true
	}
	for _, inst := range next.Instances() {
		if currentIDs[inst.InstanceID] {
			shared[inst.InstanceID] = true
		}
	}
	return shared
}
