// Package driver implements component B: the realtime audio thread
// that pulls blocks from a sound interface, decodes/encodes them
// through pkg/codec, and drives a pedalboard.Board once per block.
package driver

import (
	"errors"

	"github.com/basswood-audio/pedalengine/pkg/codec"
	"github.com/basswood-audio/pedalengine/pkg/midi"
)

// Open failure modes named by §4.B's contract.
var (
	ErrBusy        = errors.New("driver: device busy")
	ErrPermission  = errors.New("driver: permission denied")
	ErrUnsupported = errors.New("driver: unsupported configuration")
)

// Config is the negotiated device configuration a caller requests at
// Open time.
type Config struct {
	DeviceName   string
	SampleRate   float64
	BlockSize    int
	InChannels   int
	OutChannels  int
	Format       codec.Format
}

// Driver is the contract §4.B exposes to the host: open/activate/
// deactivate/close plus installing a MIDI event source.
type Driver interface {
	Open(cfg Config) error
	Activate(channelSelection []int) error
	Deactivate()
	Close() error
	SetMidiSequencer(seq MidiSequencer)
	FormatDescription() string
}

// MidiSequencer is polled once per block by the realtime thread for a
// list of timestamped events that occurred since the last poll.
type MidiSequencer interface {
	PollEvents(blockSize int) []TimestampedEvent
}

// TimestampedEvent pairs a decoded MIDI event with the driver clock
// timestamp and sample offset it arrived at, matching §3's
// MidiEvent{timestamp, frame, size, buffer} shape at the Go level.
type TimestampedEvent struct {
	Timestamp midi.Timestamp
	Event     midi.Event
}
