// Command pedalengine is the appliance's realtime audio process: it
// wires the driver, control plane, and MIDI router together, runs
// until signaled, and exits per §6's supervisor-restart contract.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/basswood-audio/pedalengine/pkg/control"
	"github.com/basswood-audio/pedalengine/pkg/crashguard"
	"github.com/basswood-audio/pedalengine/pkg/diag"
	"github.com/basswood-audio/pedalengine/pkg/driver"
	"github.com/basswood-audio/pedalengine/pkg/midi"
	"github.com/basswood-audio/pedalengine/pkg/pedalboard"
	"github.com/basswood-audio/pedalengine/pkg/ringbuf"
	"github.com/basswood-audio/pedalengine/pkg/sighandler"
	"github.com/basswood-audio/pedalengine/pkg/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	dummy := flag.Bool("dummy", false, "use the timer-paced dummy driver instead of a real sound interface")
	sampleRate := flag.Float64("rate", 48000, "sample rate in Hz")
	blockSize := flag.Int("block", 128, "frames per block")
	channels := flag.Int("channels", 2, "input/output channel count")
	crashGuardPath := flag.String("crash-guard-file", "pedalengine-crashguard", "path to the persistent crash counter")
	flag.Parse()

	log := diag.Root().With("main")

	guard, err := crashguard.Load(*crashGuardPath)
	if err != nil {
		log.Error("failed to load crash guard", "error", err)
		return 1
	}

	rt := pedalboard.NewRuntime(*channels, *blockSize, *sampleRate)
	if guard.ShouldLoadEmpty() {
		log.Warn("repeated crash detected, refusing current pedalboard", "count", guard.Count())
	}

	pair := ringbuf.NewPair(32)
	plane := control.New(rt, pair)
	router := midi.NewRouter()
	pool := worker.New()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pool.Close(ctx)
	}()

	var d driver.Driver
	if *dummy {
		d = driver.NewDummyDriver(rt, plane, pair, router, guard)
	} else {
		d = driver.NewHardwareDriver(rt, plane, pair, router, guard)
	}

	cfg := driver.Config{
		SampleRate:  *sampleRate,
		BlockSize:   *blockSize,
		InChannels:  *channels,
		OutChannels: *channels,
	}
	if err := d.Open(cfg); err != nil {
		log.Error("failed to open driver", "error", err)
		return 1
	}
	log.Info("driver opened", "format", d.FormatDescription())

	wake := make(chan struct{}, 1)
	sig := sighandler.New(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	if err := d.Activate(nil); err != nil {
		log.Error("failed to activate driver", "error", err)
		return 1
	}

	for !sig.Terminate() {
		plane.Pump()
		select {
		case <-wake:
		case <-time.After(20 * time.Millisecond):
		}
	}

	d.Deactivate()
	if err := d.Close(); err != nil {
		log.Error("failed to close driver", "error", err)
	}

	log.Info("shutdown complete", "normal", sig.NormalTermination())
	return sig.ExitCode()
}
