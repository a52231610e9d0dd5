package ringbuf

import (
	"encoding/binary"
	"math"
)

// Pair bundles the two SPSC rings that cross the realtime boundary:
// realtime writes to ToHost and reads from FromHost; the host does the
// opposite. Sizing follows §4.C's bound: one block of VU updates times
// two times max effect count, plus per-effect parameter headroom.
type Pair struct {
	ToHost   *SPSC
	FromHost *SPSC
}

// NewPair allocates a ring pair sized for the given effect count.
func NewPair(maxEffects int) *Pair {
	perEffectVU := 20 // bytes per VUPayload
	toHostSize := maxEffects*perEffectVU*2 + 4096
	fromHostSize := maxEffects*64 + 4096
	return &Pair{
		ToHost:   NewSPSC(toHostSize),
		FromHost: NewSPSC(fromHostSize),
	}
}

// VUPayload is {u64 instance_id, u32 channel, f32 peak, f32 rms}, per §6.
type VUPayload struct {
	InstanceID uint64
	Channel    uint32
	Peak       float32
	RMS        float32
}

func (p VUPayload) Marshal() []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint64(buf[0:8], p.InstanceID)
	binary.LittleEndian.PutUint32(buf[8:12], p.Channel)
	binary.LittleEndian.PutUint32(buf[12:16], f32bits(p.Peak))
	binary.LittleEndian.PutUint32(buf[16:20], f32bits(p.RMS))
	return buf
}

func UnmarshalVU(b []byte) VUPayload {
	return VUPayload{
		InstanceID: binary.LittleEndian.Uint64(b[0:8]),
		Channel:    binary.LittleEndian.Uint32(b[8:12]),
		Peak:       f32frombits(binary.LittleEndian.Uint32(b[12:16])),
		RMS:        f32frombits(binary.LittleEndian.Uint32(b[16:20])),
	}
}

// ParamPayload is {u64 instance_id, u32 port_index, f32 value}, per §6.
type ParamPayload struct {
	InstanceID uint64
	PortIndex  uint32
	Value      float32
}

func (p ParamPayload) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], p.InstanceID)
	binary.LittleEndian.PutUint32(buf[8:12], p.PortIndex)
	binary.LittleEndian.PutUint32(buf[12:16], f32bits(p.Value))
	return buf
}

func UnmarshalParam(b []byte) ParamPayload {
	return ParamPayload{
		InstanceID: binary.LittleEndian.Uint64(b[0:8]),
		PortIndex:  binary.LittleEndian.Uint32(b[8:12]),
		Value:      f32frombits(binary.LittleEndian.Uint32(b[12:16])),
	}
}

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func f32frombits(u uint32) float32 {
	return math.Float32frombits(u)
}
