// Package pedalboard implements component F: the process-plan builder
// and per-block runtime that drives a DAG of effect instances between
// the driver's decode and encode steps.
package pedalboard

// arena owns every SampleBuffer a board's process plan references. It
// is sized once at build time and never reallocated while the board is
// live, per §4.F's topology invariant.
type arena struct {
	buffers [][][]float32 // one [][]float32 (channel-major) per edge slot
	next    int
}

func newArena(channelCount, maxSplitDepth, blockSize int) *arena {
	n := 2*channelCount + 2*maxSplitDepth
	if n < 2 {
		n = 2
	}
	a := &arena{buffers: make([][][]float32, n)}
	for i := range a.buffers {
		a.buffers[i] = make([][]float32, channelCount)
		for ch := range a.buffers[i] {
			a.buffers[i][ch] = make([]float32, blockSize)
		}
	}
	return a
}

// alloc hands out the next edge buffer round-robin: once every slot
// has been handed out it wraps to the first one again. Board.compile
// calls it for each buffer it needs; nothing tracks which edges are
// still live.
func (a *arena) alloc() [][]float32 {
	buf := a.buffers[a.next%len(a.buffers)]
	a.next++
	return buf
}

func clearBuffers(buffers [][]float32) {
	for ch := range buffers {
		for i := range buffers[ch] {
			buffers[ch][i] = 0
		}
	}
}
