// Package bus resolves the channel-count mapping rule at one edge of a
// pedalboard's effect graph: how an upstream node's N output channels
// feed a downstream node's M input channels when N != M.
package bus

// Layout describes one side of an effect's audio I/O: how many audio
// channels it has, mirroring the spec's EffectInstance.input_ports /
// output_ports counts.
type Layout struct {
	Channels int
}

// Mono and Stereo are the two layouts every built-in effect and every
// edge of a linear/split pedalboard actually needs; guitar-pedal signal
// chains never carry surround buses, so Layout never grows beyond a
// channel count.
func Mono() Layout   { return Layout{Channels: 1} }
func Stereo() Layout { return Layout{Channels: 2} }

// Rule is how a source layout's output is mapped onto a destination
// layout's input at one pedalboard edge.
type Rule int

const (
	// RuleDirect: channel counts match, copy 1:1.
	RuleDirect Rule = iota
	// RuleBroadcast: source is mono, destination has more channels —
	// the single source channel feeds every destination channel.
	RuleBroadcast
	// RuleDownmix: source has more channels than destination — sum
	// (and scale by 1/N) onto the destination's channels, wrapping
	// source channels round-robin across destination channels.
	RuleDownmix
)

// Resolve picks the mapping rule for an edge between two layouts.
func Resolve(src, dst Layout) Rule {
	switch {
	case src.Channels == dst.Channels:
		return RuleDirect
	case src.Channels == 1 && dst.Channels > 1:
		return RuleBroadcast
	default:
		return RuleDownmix
	}
}

// Apply copies src frames into dst frames according to the resolved
// rule. Both buffer sets must already be sized to the same frame
// count; Apply never allocates, so it is realtime-safe.
func Apply(rule Rule, src, dst [][]float32) {
	switch rule {
	case RuleDirect:
		n := len(src)
		if len(dst) < n {
			n = len(dst)
		}
		for ch := 0; ch < n; ch++ {
			copy(dst[ch], src[ch])
		}
	case RuleBroadcast:
		if len(src) == 0 {
			return
		}
		for ch := range dst {
			copy(dst[ch], src[0])
		}
	case RuleDownmix:
		if len(dst) == 0 {
			return
		}
		for ch := range dst {
			clear32(dst[ch])
		}
		for i, s := range src {
			d := dst[i%len(dst)]
			scale := float32(1) / float32(len(src))
			for n := range s {
				if n < len(d) {
					d[n] += s[n] * scale
				}
			}
		}
	}
}

func clear32(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
