// Package process provides the per-block realtime context passed to a
// hosted effect's Process call: fixed input/output buffer slices plus
// scratch space that is pre-sized once at Prepare and never reallocated.
package process

// Context is handed to an effect's Process method each block. All of
// its slices are views into arena-owned SampleBuffers; a Processor must
// not retain them past the call and must not allocate while using them.
type Context struct {
	Input      [][]float32
	Output     [][]float32
	SampleRate float64
	NumFrames  int

	scratch []float32
}

// NewContext pre-allocates the scratch buffer to the largest block size
// the engine will ever request, so Process never triggers a GC-visible
// allocation.
func NewContext(maxBlockSize int) *Context {
	return &Context{scratch: make([]float32, maxBlockSize)}
}

// Scratch returns a zero-length-safe slice of the pre-allocated scratch
// buffer sized to the current block.
func (c *Context) Scratch() []float32 {
	return c.scratch[:c.NumFrames]
}

// PassThrough copies input to output, channel-for-channel, up to the
// smaller channel count. Used by bypass handling in pkg/effect.
func (c *Context) PassThrough() {
	n := len(c.Input)
	if len(c.Output) < n {
		n = len(c.Output)
	}
	for ch := 0; ch < n; ch++ {
		copy(c.Output[ch], c.Input[ch])
	}
}

// Silence zeros every output channel.
func (c *Context) Silence() {
	for ch := range c.Output {
		for i := range c.Output[ch] {
			c.Output[ch][i] = 0
		}
	}
}

// Finite reports whether every sample in every output channel is
// finite (no NaN/Inf). The pedalboard does not call it; Board.Run
// checks the finiteness of the board's own output for the PluginFault
// containment policy in §7.
func (c *Context) Finite() bool {
	for _, ch := range c.Output {
		for _, s := range ch {
			if s != s || s > maxFinite || s < -maxFinite {
				return false
			}
		}
	}
	return true
}

const maxFinite = 3.4e38
