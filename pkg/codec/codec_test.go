package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func allFormats() []Format {
	var formats []Format
	for key := range codecTable {
		formats = append(formats, NewFormat(key.width, key.endian, 2))
	}
	return formats
}

// TestRoundTripProperty checks §8 property 1: for every supported
// format, decode(encode(f)) stays within 4e-5 of f for f in [-1, 1].
func TestRoundTripProperty(t *testing.T) {
	for _, format := range allFormats() {
		format := format
		t.Run(formatName(format), func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				frames := rapid.IntRange(1, 32).Draw(rt, "frames")
				decode, encode := Codec(format)

				input := make([][]float32, format.Channels)
				for ch := range input {
					input[ch] = make([]float32, frames)
					for f := range input[ch] {
						input[ch][f] = float32(rapid.Float64Range(-1, 1).Draw(rt, "sample"))
					}
				}

				raw := make([]byte, frames*format.FrameBytes)
				encode(input, format.Channels, frames, raw)

				output := make([][]float32, format.Channels)
				for ch := range output {
					output[ch] = make([]float32, frames)
				}
				decode(raw, format.Channels, frames, output)

				tolerance := float32(4e-5)
				if format.Width == Float32 {
					tolerance = 0
				}
				for ch := range input {
					for f := range input[ch] {
						diff := input[ch][f] - output[ch][f]
						if diff < 0 {
							diff = -diff
						}
						require.LessOrEqualf(rt, diff, tolerance, "format=%s ch=%d f=%d in=%v out=%v", formatName(format), ch, f, input[ch][f], output[ch][f])
					}
				}
			})
		})
	}
}

func TestInt24In32PrecedenceIsBitwiseOr(t *testing.T) {
	// Regresses the precedence bug flagged in §9: a maximal-magnitude
	// negative 24-bit sample must decode to the same value whether or
	// not the byte-combination uses `+` or `|` for byte 0, since byte 0
	// contributes no overlapping bits — the real hazard is sign
	// extension using the wrong bit. This asserts the correct constant.
	raw := []byte{0x00, 0x00, 0x80, 0x00} // -8388608 in the low 3 bytes, LE
	planar := [][]float32{make([]float32, 1)}
	decodeInt24In32LE(raw, 1, 1, planar)
	require.InDelta(t, -1.0, planar[0][0], 1e-6)
}

func TestPreferenceOrderStartsWithFloat(t *testing.T) {
	require.Equal(t, Float32, PreferenceOrder[0])
	require.Equal(t, Int16, PreferenceOrder[len(PreferenceOrder)-1])
}

func formatName(f Format) string {
	widths := map[SampleWidth]string{Int16: "i16", Int24Packed: "i24p", Int24In32: "i24in32", Int32: "i32", Float32: "f32"}
	endians := map[Endianness]string{LittleEndian: "le", BigEndian: "be"}
	return widths[f.Width] + "_" + endians[f.Endian]
}
