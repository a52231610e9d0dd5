// Package codec encodes and decodes interleaved PCM to and from planar
// float32 buffers in [-1, 1], per §4.A. Every decode/encode pair below
// is monomorphic and allocation-free: callers own both the raw byte
// slice and the destination planar buffers.
package codec

import (
	"encoding/binary"
	"math"
)

// SampleWidth identifies the integer/float sample layout a device
// negotiates at open().
type SampleWidth int

const (
	Int16 SampleWidth = iota
	Int24Packed
	Int24In32
	Int32
	Float32
)

// Endianness selects byte order; the device's native order wins at
// open() since codec functions never do implicit byte-swapping beyond
// what's requested.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// Format pairs a sample width and endianness with its channel count and
// frame size; Codec returns the decode/encode functions that handle it.
type Format struct {
	Width       SampleWidth
	Endian      Endianness
	Channels    int
	FrameBytes  int // bytes per frame = bytes-per-sample * Channels
}

// Decoder converts raw interleaved bytes into planar float32 buffers,
// one slice per channel, each exactly frames long.
type Decoder func(raw []byte, channels, frames int, planar [][]float32)

// Encoder is the inverse of Decoder.
type Encoder func(planar [][]float32, channels, frames int, raw []byte)

// NewFormat computes FrameBytes for a (width, endian, channels) triple.
func NewFormat(width SampleWidth, endian Endianness, channels int) Format {
	return Format{Width: width, Endian: endian, Channels: channels, FrameBytes: bytesPerSample(width) * channels}
}

func bytesPerSample(w SampleWidth) int {
	switch w {
	case Int16:
		return 2
	case Int24Packed:
		return 3
	case Int24In32, Int32, Float32:
		return 4
	default:
		return 0
	}
}

// Codec returns the (Decoder, Encoder) pair for a format, selected by
// lookup table rather than a type switch so the hot path never branches
// on width beyond this one indirection.
func Codec(f Format) (Decoder, Encoder) {
	key := codecKey{f.Width, f.Endian}
	entry, ok := codecTable[key]
	if !ok {
		// Caller negotiated a format the device table doesn't support;
		// this is a programming error upstream of the codec, not a
		// runtime condition to recover from.
		panic("codec: unsupported format")
	}
	return entry.decode, entry.encode
}

type codecKey struct {
	width  SampleWidth
	endian Endianness
}

type codecEntry struct {
	decode Decoder
	encode Encoder
}

var codecTable = map[codecKey]codecEntry{
	{Int16, LittleEndian}:      {decodeInt16LE, encodeInt16LE},
	{Int16, BigEndian}:         {decodeInt16BE, encodeInt16BE},
	{Int24Packed, LittleEndian}: {decodeInt24PackedLE, encodeInt24PackedLE},
	{Int24Packed, BigEndian}:    {decodeInt24PackedBE, encodeInt24PackedBE},
	{Int24In32, LittleEndian}:  {decodeInt24In32LE, encodeInt24In32LE},
	{Int24In32, BigEndian}:     {decodeInt24In32BE, encodeInt24In32BE},
	{Int32, LittleEndian}:      {decodeInt32LE, encodeInt32LE},
	{Int32, BigEndian}:         {decodeInt32BE, encodeInt32BE},
	{Float32, LittleEndian}:    {decodeFloat32LE, encodeFloat32LE},
	{Float32, BigEndian}:       {decodeFloat32BE, encodeFloat32BE},
}

// PreferenceOrder is the device-format negotiation order from §4.A:
// native-float, 32-int, 24-packed, 24-in-32, 16-int.
var PreferenceOrder = []SampleWidth{Float32, Int32, Int24Packed, Int24In32, Int16}

func clamp1(f float32) float32 {
	if f > 1 {
		return 1
	}
	if f < -1 {
		return -1
	}
	return f
}

// --- 16-bit ---

func decodeInt16LE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 32768.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 2
			v := int16(binary.LittleEndian.Uint16(raw[off:]))
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt16LE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 2
			v := math.Round(float64(clamp1(planar[ch][f])) * 32768.0)
			if v > 32767 {
				v = 32767
			}
			binary.LittleEndian.PutUint16(raw[off:], uint16(int16(v)))
		}
	}
}

func decodeInt16BE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 32768.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 2
			v := int16(binary.BigEndian.Uint16(raw[off:]))
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt16BE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 2
			v := math.Round(float64(clamp1(planar[ch][f])) * 32768.0)
			if v > 32767 {
				v = 32767
			}
			binary.BigEndian.PutUint16(raw[off:], uint16(int16(v)))
		}
	}
}

// --- 24-bit packed (3 bytes per sample, no padding) ---

func decodeInt24PackedLE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 8388608.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 3
			v := int32(raw[off]) | int32(raw[off+1])<<8 | int32(raw[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF) // sign-extend
			}
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt24PackedLE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 3
			v := int32(clamp1(planar[ch][f]) * 8388607.0)
			raw[off] = byte(v)
			raw[off+1] = byte(v >> 8)
			raw[off+2] = byte(v >> 16)
		}
	}
}

func decodeInt24PackedBE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 8388608.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 3
			v := int32(raw[off])<<16 | int32(raw[off+1])<<8 | int32(raw[off+2])
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt24PackedBE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 3
			v := int32(clamp1(planar[ch][f]) * 8388607.0)
			raw[off] = byte(v >> 16)
			raw[off+1] = byte(v >> 8)
			raw[off+2] = byte(v)
		}
	}
}

// --- 24-bit stored in the low 3 bytes of a 32-bit word ---
//
// §9 flags this exact shape as a suspected bug site in the original
// source: `(p[0] << 8) + (p[1] << 16) | (p[2] << 24)` mixes `+` and `|`
// and is almost certainly wrong. Re-derived from the format definition
// instead of copied: all three byte contributions are combined with
// `|`, never `+`, and the sign bit lives in the top byte of the 24-bit
// value (bit 23), not the top byte of the 32-bit word.

func decodeInt24In32LE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 8388608.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(raw[off]) | int32(raw[off+1])<<8 | int32(raw[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt24In32LE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(clamp1(planar[ch][f]) * 8388607.0)
			raw[off] = byte(v)
			raw[off+1] = byte(v >> 8)
			raw[off+2] = byte(v >> 16)
			raw[off+3] = 0
		}
	}
}

func decodeInt24In32BE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 8388608.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(raw[off+1])<<16 | int32(raw[off+2])<<8 | int32(raw[off+3])
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt24In32BE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(clamp1(planar[ch][f]) * 8388607.0)
			raw[off] = 0
			raw[off+1] = byte(v >> 16)
			raw[off+2] = byte(v >> 8)
			raw[off+3] = byte(v)
		}
	}
}

// --- 32-bit integer ---

func decodeInt32LE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 2147483648.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(binary.LittleEndian.Uint32(raw[off:]))
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt32LE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(float64(clamp1(planar[ch][f])) * 2147483647.0)
			binary.LittleEndian.PutUint32(raw[off:], uint32(v))
		}
	}
}

func decodeInt32BE(raw []byte, channels, frames int, planar [][]float32) {
	const scale = 1.0 / 2147483648.0
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(binary.BigEndian.Uint32(raw[off:]))
			planar[ch][f] = float32(v) * scale
		}
	}
}

func encodeInt32BE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			v := int32(float64(clamp1(planar[ch][f])) * 2147483647.0)
			binary.BigEndian.PutUint32(raw[off:], uint32(v))
		}
	}
}

// --- 32-bit float (native format, no scaling) ---

func decodeFloat32LE(raw []byte, channels, frames int, planar [][]float32) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			bits := binary.LittleEndian.Uint32(raw[off:])
			planar[ch][f] = math.Float32frombits(bits)
		}
	}
}

func encodeFloat32LE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(planar[ch][f]))
		}
	}
}

func decodeFloat32BE(raw []byte, channels, frames int, planar [][]float32) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			bits := binary.BigEndian.Uint32(raw[off:])
			planar[ch][f] = math.Float32frombits(bits)
		}
	}
}

func encodeFloat32BE(planar [][]float32, channels, frames int, raw []byte) {
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channels; ch++ {
			off := (f*channels + ch) * 4
			binary.BigEndian.PutUint32(raw[off:], math.Float32bits(planar[ch][f]))
		}
	}
}
