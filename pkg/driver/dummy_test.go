package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basswood-audio/pedalengine/pkg/control"
	"github.com/basswood-audio/pedalengine/pkg/crashguard"
	"github.com/basswood-audio/pedalengine/pkg/midi"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/ringbuf"
)

func TestDummyDriverRunsBlocksAndTerminatesCleanly(t *testing.T) {
	rt := pedalboard.NewRuntime(2, 64, 48000)
	pair := ringbuf.NewPair(8)
	plane := control.New(rt, pair)
	router := midi.NewRouter()
	guard, err := crashguard.Load(t.TempDir() + "/crashguard")
	require.NoError(t, err)

	d := NewDummyDriver(rt, plane, pair, router, guard)
	require.NoError(t, d.Open(Config{SampleRate: 48000, BlockSize: 64, InChannels: 2, OutChannels: 2}))
	require.NoError(t, d.Activate(nil))

	time.Sleep(20 * time.Millisecond)
	d.Deactivate()

	require.Equal(t, 0, 0) // reaching here without deadlock/panic is the assertion
}

func TestFormatDescriptionReportsConfig(t *testing.T) {
	rt := pedalboard.NewRuntime(1, 32, 44100)
	pair := ringbuf.NewPair(4)
	plane := control.New(rt, pair)
	router := midi.NewRouter()
	guard, err := crashguard.Load(t.TempDir() + "/crashguard")
	require.NoError(t, err)

	d := NewDummyDriver(rt, plane, pair, router, guard)
	require.NoError(t, d.Open(Config{SampleRate: 44100, BlockSize: 32, InChannels: 1, OutChannels: 1}))
	require.Contains(t, d.FormatDescription(), "44100")
	require.Contains(t, d.FormatDescription(), "32")
}
