package effect

import (
	"sync/atomic"

	"github.com/basswood-audio/pedalengine/pkg/param"
)

// paramQueue is the per-effect SPSC parameter_change queue from §3:
// writer is the control plane (non-realtime), reader is the realtime
// thread. It is bounded; on overflow the oldest entry in *this*
// effect's queue is dropped to make room, per the spec's stated
// overflow policy — never the caller's newest write.
type paramQueue struct {
	slots    []param.Change
	mask     uint64
	readPos  uint64
	writePos uint64
}

func newParamQueue(capacity int) *paramQueue {
	n := 1
	for n < capacity {
		n <<= 1
	}
	return &paramQueue{slots: make([]param.Change, n), mask: uint64(n - 1)}
}

// push enqueues a change, dropping the oldest queued entry if full.
func (q *paramQueue) push(c param.Change) {
	write := atomic.LoadUint64(&q.writePos)
	read := atomic.LoadUint64(&q.readPos)

	if write-read >= uint64(len(q.slots)) {
		// Full: drop the oldest by advancing read past it.
		atomic.AddUint64(&q.readPos, 1)
		read++
	}

	q.slots[write&q.mask] = c
	atomic.StoreUint64(&q.writePos, write+1)
}

// drain calls fn for every queued change in FIFO order, then empties
// the queue. Only the realtime thread calls drain.
func (q *paramQueue) drain(fn func(param.Change)) {
	read := atomic.LoadUint64(&q.readPos)
	write := atomic.LoadUint64(&q.writePos)
	for read < write {
		fn(q.slots[read&q.mask])
		read++
	}
	atomic.StoreUint64(&q.readPos, read)
}
