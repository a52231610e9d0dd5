package driver

import (
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/basswood-audio/pedalengine/pkg/midi"
)

// RawMidiSource is whatever hardware boundary hands the driver
// complete raw MIDI byte sequences, per §6's sequencer contract:
// "Messages are raw MIDI byte sequences with a monotonic timestamp.
// META messages (leading byte 0xFF) are dropped. SysEx reassembly is
// the sequencer's responsibility; the engine sees complete messages
// only."
type RawMidiSource interface {
	ReadMessage(timeout time.Duration) (raw []byte, ts midi.Timestamp, ok bool)
}

// HardwareMidiSequencer adapts a RawMidiSource into the driver's
// MidiSequencer contract, parsing each raw message with
// gitlab.com/gomidi/midi/v2 into one of pkg/midi's typed Events and
// staging them in a midi.EventQueue. Every event is staged with sample
// offset 0, so the block's events keep their arrival order.
type HardwareMidiSequencer struct {
	source RawMidiSource
	staged *midi.EventQueue
	clocks []midi.Timestamp
}

// NewHardwareMidiSequencer wraps a raw byte source.
func NewHardwareMidiSequencer(source RawMidiSource) *HardwareMidiSequencer {
	return &HardwareMidiSequencer{source: source, staged: midi.NewEventQueue()}
}

// PollEvents drains whatever messages the source has ready without
// blocking past a nominal zero timeout, stages them in the queue at
// sample offset 0, and hands them back in arrival order. The driver
// calls this once per block per §4.B step 4.
func (s *HardwareMidiSequencer) PollEvents(blockSize int) []TimestampedEvent {
	s.clocks = s.clocks[:0]
	for {
		raw, ts, ok := s.source.ReadMessage(0)
		if !ok {
			break
		}
		if len(raw) == 0 || raw[0] == 0xFF {
			continue
		}
		ev, ok := decode(raw)
		if !ok {
			continue
		}
		s.staged.Add(ev)
		s.clocks = append(s.clocks, ts)
	}
	if s.staged.IsEmpty() {
		return nil
	}

	events := s.staged.GetEventsInRange(0, int32(blockSize))
	s.staged.RemoveProcessedEvents(int32(blockSize) - 1)

	out := make([]TimestampedEvent, len(events))
	for i, ev := range events {
		var ts midi.Timestamp
		if i < len(s.clocks) {
			ts = s.clocks[i]
		}
		out[i] = TimestampedEvent{Timestamp: ts, Event: ev}
	}
	return out
}

func decode(raw []byte) (midi.Event, bool) {
	msg := gomidi.Message(raw)

	var ch, key, vel, cc, val, prog uint8
	var bend int16

	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return midi.NoteOnEvent{BaseEvent: midi.BaseEvent{EventChannel: ch}, NoteNumber: key, Velocity: vel}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return midi.NoteOffEvent{BaseEvent: midi.BaseEvent{EventChannel: ch}, NoteNumber: key, Velocity: vel}, true
	case msg.GetControlChange(&ch, &cc, &val):
		return midi.ControlChangeEvent{BaseEvent: midi.BaseEvent{EventChannel: ch}, Controller: cc, Value: val}, true
	case msg.GetProgramChange(&ch, &prog):
		return midi.ProgramChangeEvent{BaseEvent: midi.BaseEvent{EventChannel: ch}, Program: prog}, true
	case msg.GetPitchBend(&ch, &bend):
		return midi.PitchBendEvent{BaseEvent: midi.BaseEvent{EventChannel: ch}, Value: bend}, true
	default:
		return nil, false
	}
}
