// Package worker implements component I: a single-goroutine FIFO job
// queue for running long operations off the realtime thread. No engine
// component posts jobs to it; patch-property requests are handled
// synchronously by effect.Instance.RequestPatchProperty.
package worker

import (
	"context"
	"sync"

	"github.com/basswood-audio/pedalengine/pkg/diag"
)

// Job is a unit of non-realtime work posted by the realtime or control
// thread. It never runs on the realtime thread itself.
type Job func()

const defaultQueueDepth = 64

// Pool is a single background goroutine draining a bounded FIFO of
// Jobs. Posting never blocks the realtime thread: Post drops the job
// and logs if the queue is full rather than waiting for room.
type Pool struct {
	jobs   chan Job
	done   chan struct{}
	wg     sync.WaitGroup
	log    *diag.Logger
	dropped uint64
}

// New starts a worker pool's background goroutine. Call Close to drain
// in-flight work and stop accepting new jobs.
func New() *Pool {
	p := &Pool{
		jobs: make(chan Job, defaultQueueDepth),
		done: make(chan struct{}),
		log:  diag.Root().With("worker"),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			job()
		case <-p.done:
			// Drain whatever is already queued, then exit; queued work
			// submitted after Close is never seen because Post checks
			// done first.
			for {
				select {
				case job := <-p.jobs:
					job()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues a job for background execution. Realtime-safe in the
// sense that it never blocks: a full queue drops the job and counts it
// rather than stalling the caller.
func (p *Pool) Post(job Job) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.jobs <- job:
	default:
		p.dropped++
		p.log.Warn("worker queue full, dropping job", "dropped_total", p.dropped)
	}
}

// Dropped returns the number of jobs dropped due to a full queue.
func (p *Pool) Dropped() uint64 { return p.dropped }

// Close stops accepting new jobs and waits for the goroutine to drain
// whatever was already queued before returning. In-flight jobs run to
// completion; jobs submitted concurrently with Close may be dropped.
func (p *Pool) Close(ctx context.Context) {
	close(p.done)
	waited := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		p.log.Warn("worker pool close timed out, jobs may still be running")
	}
}
