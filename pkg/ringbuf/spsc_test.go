package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSPSCWriteReadRoundTrip(t *testing.T) {
	r := NewSPSC(64)
	require.NoError(t, r.Write([]byte("hello")))
	out := make([]byte, 5)
	n := r.Read(out)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(out))
}

func TestSPSCCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := NewSPSC(100)
	require.Equal(t, 128, r.Capacity())
}

func TestSPSCWriteFullReturnsError(t *testing.T) {
	r := NewSPSC(8)
	err := r.Write(make([]byte, 9))
	require.ErrorIs(t, err, ErrFull)
}

func TestSPSCWrapAround(t *testing.T) {
	r := NewSPSC(8)
	require.NoError(t, r.Write([]byte{1, 2, 3, 4, 5, 6}))
	buf := make([]byte, 6)
	r.Read(buf)
	require.NoError(t, r.Write([]byte{7, 8, 9, 10, 11, 12}))
	out := make([]byte, 6)
	n := r.Read(out)
	require.Equal(t, 6, n)
	require.Equal(t, []byte{7, 8, 9, 10, 11, 12}, out)
}

func TestSPSCFrameRoundTrip(t *testing.T) {
	r := NewSPSC(256)
	payload := VUPayload{InstanceID: 42, Channel: 1, Peak: 0.5, RMS: 0.25}
	require.NoError(t, r.WriteFrame(TagVUSample, payload.Marshal()))

	frame, ok := r.ReadFrame()
	require.True(t, ok)
	require.Equal(t, TagVUSample, frame.Tag)

	got := UnmarshalVU(frame.Payload)
	require.Equal(t, payload, got)
}

func TestSPSCReadFrameIncomplete(t *testing.T) {
	r := NewSPSC(64)
	require.NoError(t, r.Write([]byte{1, 2, 3}))
	_, ok := r.ReadFrame()
	require.False(t, ok)
}

// TestSPSCConcurrentProducerConsumer exercises property 2's spirit at
// the transport layer: values written in order are observed in order
// by a single consumer goroutine racing a single producer goroutine.
func TestSPSCConcurrentProducerConsumer(t *testing.T) {
	r := NewSPSC(1 << 16)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			p := ParamPayload{InstanceID: 1, PortIndex: uint32(i), Value: float32(i)}
			for r.WriteFrame(TagSetControl, p.Marshal()) == ErrFull {
				// spin: producer must not block per §4.C, but the test
				// harness is allowed to retry until space frees up.
			}
		}
	}()

	received := make([]uint32, 0, n)
	go func() {
		defer wg.Done()
		for len(received) < n {
			frame, ok := r.ReadFrame()
			if !ok {
				continue
			}
			p := UnmarshalParam(frame.Payload)
			received = append(received, p.PortIndex)
		}
	}()

	wg.Wait()
	for i, v := range received {
		require.Equal(t, uint32(i), v)
	}
}
