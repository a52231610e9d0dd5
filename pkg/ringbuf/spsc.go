// Package ringbuf implements the lock-free SPSC byte ring and the
// tagged message framing that carries every realtime-crossing message
// between the audio thread and the host, per §4.C.
package ringbuf

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
)

// ErrFull is returned by Write when the ring has no room for the
// message. Host->RT overflow surfaces this to the calling API as
// Busy; RT->Host overflow is a soft-drop the caller counts instead of
// propagating.
var ErrFull = errors.New("ringbuf: full")

// SPSC is a single-producer/single-consumer byte ring sized to a power
// of two, with atomic read/write cursors. Its cursor arithmetic is the
// same wrap-around-by-mask technique a write-ahead jitter buffer uses
// to stay allocation-free under concurrent access.
type SPSC struct {
	data     []byte
	mask     uint64
	readPos  uint64
	writePos uint64
}

// NewSPSC allocates a ring whose capacity is the next power of two at
// or above size.
func NewSPSC(size int) *SPSC {
	cap := nextPowerOfTwo(size)
	return &SPSC{data: make([]byte, cap), mask: uint64(cap - 1)}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Capacity returns the ring's total byte capacity.
func (r *SPSC) Capacity() int { return len(r.data) }

func (r *SPSC) availableToWrite(read, write uint64) int {
	used := write - read
	return len(r.data) - int(used)
}

func (r *SPSC) availableToRead(read, write uint64) int {
	return int(write - read)
}

// Write copies p into the ring. It never blocks or allocates; if there
// isn't room for the whole message it writes nothing and returns
// ErrFull. Only the single designated producer goroutine may call
// Write.
func (r *SPSC) Write(p []byte) error {
	write := atomic.LoadUint64(&r.writePos)
	read := atomic.LoadUint64(&r.readPos)

	if r.availableToWrite(read, write) < len(p) {
		return ErrFull
	}

	remaining := len(p)
	srcOff := 0
	for remaining > 0 {
		idx := write & r.mask
		chunk := remaining
		if maxRun := len(r.data) - int(idx); chunk > maxRun {
			chunk = maxRun
		}
		copy(r.data[idx:idx+uint64(chunk)], p[srcOff:srcOff+chunk])
		write += uint64(chunk)
		srcOff += chunk
		remaining -= chunk
	}

	atomic.StoreUint64(&r.writePos, write)
	return nil
}

// Read copies up to len(p) bytes out of the ring into p and returns
// how many bytes were copied. Only the single designated consumer
// goroutine may call Read.
func (r *SPSC) Read(p []byte) int {
	read := atomic.LoadUint64(&r.readPos)
	write := atomic.LoadUint64(&r.writePos)

	avail := r.availableToRead(read, write)
	n := len(p)
	if n > avail {
		n = avail
	}

	remaining := n
	dstOff := 0
	for remaining > 0 {
		idx := read & r.mask
		chunk := remaining
		if maxRun := len(r.data) - int(idx); chunk > maxRun {
			chunk = maxRun
		}
		copy(p[dstOff:dstOff+chunk], r.data[idx:idx+uint64(chunk)])
		read += uint64(chunk)
		dstOff += chunk
		remaining -= chunk
	}

	atomic.StoreUint64(&r.readPos, read)
	return n
}

// Len reports how many unread bytes are currently buffered.
func (r *SPSC) Len() int {
	read := atomic.LoadUint64(&r.readPos)
	write := atomic.LoadUint64(&r.writePos)
	return r.availableToRead(read, write)
}

// --- bit-exact message framing, per §6 ---

// Tag identifies the kind of message carried in a frame.
type Tag uint32

const (
	// RT -> Host
	TagVUSample Tag = iota
	TagParamReadback
	TagMidiLearned
	TagUnderrunCounter
	TagAudioTerminated

	// Host -> RT
	TagLoadPedalboard
	TagSetControl
	TagSetBypass
	TagSetInputVolDB
	TagSetOutputVolDB
	TagRequestPatchProp
	TagMidiLearn
)

// frameHeader is {u32 length, u32 tag} — length is the payload length
// only, per §6.
const frameHeaderBytes = 8

// WriteFrame writes one length-prefixed, tagged message. Returns
// ErrFull (unchanged) if the ring can't fit header+payload.
func (r *SPSC) WriteFrame(tag Tag, payload []byte) error {
	header := make([]byte, frameHeaderBytes)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(tag))

	if r.availableToWrite(atomic.LoadUint64(&r.readPos), atomic.LoadUint64(&r.writePos)) < len(header)+len(payload) {
		return ErrFull
	}
	// Both sub-writes already passed the capacity check above, so
	// neither can fail; errors are impossible here but checked anyway
	// to keep Write's contract honest.
	if err := r.Write(header); err != nil {
		return err
	}
	return r.Write(payload)
}

// Frame is one decoded message pulled off the ring.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// ReadFrame pulls the next complete frame off the ring, or reports
// false if fewer than one full frame is currently buffered. It
// allocates a payload slice per call, so only the host-side consumer
// (pkg/control.Plane.Pump) may use it.
func (r *SPSC) ReadFrame() (Frame, bool) {
	if r.Len() < frameHeaderBytes {
		return Frame{}, false
	}

	header := make([]byte, frameHeaderBytes)
	read := atomic.LoadUint64(&r.readPos)
	for i := 0; i < frameHeaderBytes; i++ {
		header[i] = r.data[(read+uint64(i))&r.mask]
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	tag := Tag(binary.LittleEndian.Uint32(header[4:8]))

	if r.Len() < frameHeaderBytes+int(length) {
		return Frame{}, false
	}

	r.Read(header) // advance past the header we peeked
	payload := make([]byte, length)
	r.Read(payload)

	return Frame{Tag: tag, Payload: payload}, true
}

// ReadFrameInto is ReadFrame's allocation-free twin for the realtime
// thread: it copies the payload into scratch (which the caller owns
// and reuses across blocks) instead of allocating a new slice. If the
// frame's payload is larger than scratch, the frame is still consumed
// (so the ring doesn't wedge) but ok reports false and the caller
// should treat it as dropped.
func (r *SPSC) ReadFrameInto(scratch []byte) (tag Tag, payload []byte, ok bool) {
	if r.Len() < frameHeaderBytes {
		return 0, nil, false
	}

	var header [frameHeaderBytes]byte
	read := atomic.LoadUint64(&r.readPos)
	for i := 0; i < frameHeaderBytes; i++ {
		header[i] = r.data[(read+uint64(i))&r.mask]
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	tag = Tag(binary.LittleEndian.Uint32(header[4:8]))

	if r.Len() < frameHeaderBytes+int(length) {
		return 0, nil, false
	}

	r.Read(header[:]) // advance past the header we peeked
	if int(length) > len(scratch) {
		r.discard(int(length))
		return tag, nil, false
	}
	r.Read(scratch[:length])
	return tag, scratch[:length], true
}

// discard advances the read cursor past n unread bytes without
// copying them anywhere.
func (r *SPSC) discard(n int) {
	read := atomic.LoadUint64(&r.readPos)
	atomic.StoreUint64(&r.readPos, read+uint64(n))
}
