package midi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/basswood-audio/pedalengine/pkg/effect"
	"github.com/basswood-audio/pedalengine/pkg/param"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/process"
)

type nopProcessor struct{ ports *param.Registry }

func newNopProcessor() *nopProcessor {
	r := param.NewRegistry()
	r.Add(param.NewPort("gain", "Gain", 0, 1, 0))
	return &nopProcessor{ports: r}
}

func (p *nopProcessor) Prepare(sampleRate float64, maxBlockSize, in, out int) error { return nil }
func (p *nopProcessor) Activate()                                                  {}
func (p *nopProcessor) Deactivate()                                                {}
func (p *nopProcessor) Process(ctx *process.Context)                               {}
func (p *nopProcessor) Controls() *param.Registry                                  { return p.ports }
func (p *nopProcessor) LatencySamples() int                                        { return 0 }

func buildTestBoard(t *testing.T) (*pedalboard.Board, *effect.Instance) {
	t.Helper()
	inst := effect.New(7, "test://nop", newNopProcessor())
	require.NoError(t, inst.Prepare(48000, 64, 1, 1))
	inst.Activate()
	board := pedalboard.Build(&pedalboard.EffectNode{Instance: inst}, 1, 64, 48000)
	return board, inst
}

func TestLinearMappingScalesFullCCRange(t *testing.T) {
	board, inst := buildTestBoard(t)
	r := NewRouter()
	b := &Binding{
		Key:           BindingKey{Kind: KeyCC, Channel: 0, Controller: 20},
		InstanceID:    7,
		ControlSymbol: "gain",
		Mapping:       Linear,
		Min:           0,
		Max:           1,
	}
	r.Load([]*Binding{b}, board)

	r.Dispatch(ControlChangeEvent{BaseEvent: BaseEvent{EventChannel: 0}, Controller: 20, Value: 127}, board, Timestamp{})
	v, _ := inst.GetControl("gain")
	require.InDelta(t, 1.0, v, 1e-9)

	r.Dispatch(ControlChangeEvent{BaseEvent: BaseEvent{EventChannel: 0}, Controller: 20, Value: 0}, board, Timestamp{})
	v, _ = inst.GetControl("gain")
	require.InDelta(t, 0.0, v, 1e-9)
}

func TestUnresolvedBindingIsSilentlyIgnored(t *testing.T) {
	board, _ := buildTestBoard(t)
	r := NewRouter()
	b := &Binding{
		Key:           BindingKey{Kind: KeyCC, Channel: 0, Controller: 1},
		InstanceID:    999, // absent from board
		ControlSymbol: "gain",
		Mapping:       Linear,
		Min:           0,
		Max:           1,
	}
	r.Load([]*Binding{b}, board)
	require.False(t, b.resolved)
	// Must not panic.
	r.Dispatch(ControlChangeEvent{BaseEvent: BaseEvent{EventChannel: 0}, Controller: 1, Value: 127}, board, Timestamp{})
}

// TestTapTempoConverges implements §8 property 6: repeated taps at a
// fixed interval converge the bound control to 60/interval bpm via the
// α=0.25 smoothing, and a small drift between taps still contributes
// to the damped estimate instead of resetting it.
func TestTapTempoConverges(t *testing.T) {
	board, inst := buildTestBoard(t)
	inst.Controls().Add(param.NewPort("bpm", "BPM", 20, 300, 120))
	r := NewRouter()
	b := &Binding{
		Key:           BindingKey{Kind: KeyNote, Channel: 0, Controller: 60},
		InstanceID:    7,
		ControlSymbol: "bpm",
		Mapping:       TapTempo,
		Min:           20,
		Max:           300,
	}
	r.Load([]*Binding{b}, board)

	tap := func(ts Timestamp) {
		r.Dispatch(NoteOnEvent{BaseEvent: BaseEvent{EventChannel: 0}, NoteNumber: 60, Velocity: 100}, board, ts)
	}

	tap(Timestamp{Seconds: 1})
	tap(Timestamp{Seconds: 2}) // 1s interval -> 60bpm, first reading seeds the smoother
	v, ok := inst.GetControl("bpm")
	require.True(t, ok)
	require.InDelta(t, 60.0, v, 1e-6)

	tap(Timestamp{Seconds: 3}) // another 1s interval -> still 60bpm
	v, _ = inst.GetControl("bpm")
	require.InDelta(t, 60.0, v, 1e-6)

	tap(Timestamp{Seconds: 3, Nanoseconds: 950_000_000}) // 0.95s -> ~63.16bpm, 5% drift, damped in
	v, _ = inst.GetControl("bpm")
	want := 0.25*(60.0/0.95) + 0.75*60.0
	require.InDelta(t, want, v, 1e-6)
}

// TestTapTempoResetsOnLongGapOrDrift implements §4.G's two reset
// conditions: an interval over 2s, and a raw tap that drifts more
// than 15% from the previous raw tap.
func TestTapTempoResetsOnLongGapOrDrift(t *testing.T) {
	board, inst := buildTestBoard(t)
	inst.Controls().Add(param.NewPort("bpm", "BPM", 20, 300, 120))
	r := NewRouter()
	b := &Binding{
		Key:           BindingKey{Kind: KeyNote, Channel: 0, Controller: 60},
		InstanceID:    7,
		ControlSymbol: "bpm",
		Mapping:       TapTempo,
		Min:           20,
		Max:           300,
	}
	r.Load([]*Binding{b}, board)

	tap := func(ts Timestamp) {
		r.Dispatch(NoteOnEvent{BaseEvent: BaseEvent{EventChannel: 0}, NoteNumber: 60, Velocity: 100}, board, ts)
	}

	tap(Timestamp{Seconds: 1})
	tap(Timestamp{Seconds: 2}) // 1s -> 60bpm
	v, _ := inst.GetControl("bpm")
	require.InDelta(t, 60.0, v, 1e-6)

	// A jump to 120bpm is a 100% drift from the 60bpm reading: reset,
	// not smoothed in.
	tap(Timestamp{Seconds: 2, Nanoseconds: 500_000_000})
	v, _ = inst.GetControl("bpm")
	require.InDelta(t, 60.0, v, 1e-6, "drift beyond 15%% must reset, not apply")

	// The tap right after a reset seeds the estimate fresh.
	tap(Timestamp{Seconds: 3})
	v, _ = inst.GetControl("bpm")
	require.InDelta(t, 120.0, v, 1e-6)

	// A gap over 2s resets instead of computing a very slow tempo.
	tap(Timestamp{Seconds: 6})
	v, _ = inst.GetControl("bpm")
	require.InDelta(t, 120.0, v, 1e-6, "long gap must reset, not apply a new value")

	tap(Timestamp{Seconds: 6, Nanoseconds: 500_000_000})
	v, _ = inst.GetControl("bpm")
	require.InDelta(t, 120.0, v, 1e-6)
}
