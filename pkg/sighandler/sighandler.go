// Package sighandler implements component K: translating SIGINT,
// SIGTERM and SIGHUP into the engine's shutdown flags so the driver's
// realtime loop can exit cleanly on its own thread rather than being
// torn down from a signal handler.
package sighandler

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/basswood-audio/pedalengine/pkg/diag"
)

// Handler owns the signal channel and the flags the driver polls once
// per block.
type Handler struct {
	terminate         atomic.Bool
	normalTermination atomic.Bool

	sigCh chan os.Signal
	wake  func()
	log   *diag.Logger
}

// New installs the signal handler. wake, if non-nil, is called after
// the flags are set so a blocked driver (e.g. waiting on a device) can
// be interrupted promptly instead of waiting for its next poll.
func New(wake func()) *Handler {
	h := &Handler{
		sigCh: make(chan os.Signal, 4),
		wake:  wake,
		log:   diag.Root().With("sighandler"),
	}
	signal.Notify(h.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go h.run()
	return h
}

func (h *Handler) run() {
	for sig := range h.sigCh {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			h.log.Info("received termination signal", "signal", sig.String())
			h.normalTermination.Store(true)
			h.terminate.Store(true)
		case syscall.SIGHUP:
			h.log.Info("received SIGHUP, terminating without normal-shutdown semantics")
			h.terminate.Store(true)
		}
		if h.wake != nil {
			h.wake()
		}
	}
}

// Terminate reports whether the driver's realtime loop should exit.
func (h *Handler) Terminate() bool { return h.terminate.Load() }

// NormalTermination reports whether the termination was a clean
// SIGINT/SIGTERM (exit code 0) as opposed to SIGHUP or a crash path
// (exit code 1), per §6's exit-code semantics.
func (h *Handler) NormalTermination() bool { return h.normalTermination.Load() }

// ExitCode returns the process exit code matching §6: 0 for a clean
// shutdown, 1 for anything else.
func (h *Handler) ExitCode() int {
	if h.NormalTermination() {
		return 0
	}
	return 1
}

// Stop stops receiving signals; used by tests to avoid leaking the
// background goroutine across cases.
func (h *Handler) Stop() {
	signal.Stop(h.sigCh)
	close(h.sigCh)
}
