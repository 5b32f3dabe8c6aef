// Package worker runs a fixed-size pool of goroutines that each pull one
// opportunity at a time from a shared queue, evaluate it, and route the
// result to a submission sink — the per-item protocol that turns a cached
// candidate into either a submitted transaction or a discarded one.
package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Item is one unit of work a worker pulls from Source. It is intentionally
// minimal: everything a worker needs to act is reachable through Evaluate
// and Submit, so the pool itself never has to know about trade.Path,
// dex.Dex or sim.Simulator directly.
type Item interface {
	// Evaluate re-checks and finalises the opportunity, returning false
	// if it is no longer profitable (e.g. a competing fill emptied the
	// pool since the candidate was cached).
	Evaluate(ctx context.Context) (ok bool, err error)
	// Submit sends the finalised transaction to its destination
	// (public mempool, private relay, or auction bid sink, chosen
	// by the item's own Source tag).
	Submit(ctx context.Context) error
}

// Source supplies the next Item to work on, blocking until one is
// available or ctx is cancelled.
type Source interface {
	Next(ctx context.Context) (Item, error)
}

// Outcome is what happened to one Item, reported to Sink after Submit (or
// after Evaluate rejects it).
type Outcome struct {
	WorkerID string
	Accepted bool
	Err      error
}

// Sink receives one Outcome per processed Item. Implementations must not
// block the calling worker for long.
type Sink interface {
	Report(Outcome)
}

// Pool runs N workers pulling from a single Source until its context is
// cancelled.
type Pool struct {
	Source Source
	Sink   Sink
	Size   int
	Logger *log.Logger
}

// Run blocks until ctx is cancelled, then waits for every worker goroutine
// to finish its in-flight item before returning.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.Size)
	for i := 0; i < p.Size; i++ {
		id := uuid.NewString()
		go func(id string) {
			defer wg.Done()
			p.runOne(ctx, id)
		}(id)
	}
	wg.Wait()
}

// runOne is a single worker's loop: pull one item, evaluate it, submit it
// if still profitable, report the outcome, repeat. A panic from Evaluate
// or Submit is recovered and reported as a failed outcome rather than
// taking down the whole pool, since one malformed candidate must not stop
// the other workers from draining the queue.
func (p *Pool) runOne(ctx context.Context, id string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := p.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if p.Logger != nil {
				p.Logger.WithField("worker", id).WithError(err).Warn("failed to pull next item")
			}
			continue
		}

		p.process(ctx, id, item)
	}
}

func (p *Pool) process(ctx context.Context, id string, item Item) {
	defer func() {
		if r := recover(); r != nil {
			if p.Logger != nil {
				p.Logger.WithField("worker", id).WithField("panic", r).Error("recovered from panic processing item")
			}
			p.Sink.Report(Outcome{WorkerID: id, Accepted: false})
		}
	}()

	ok, err := item.Evaluate(ctx)
	if err != nil || !ok {
		p.Sink.Report(Outcome{WorkerID: id, Accepted: false, Err: err})
		return
	}

	if err := item.Submit(ctx); err != nil {
		p.Sink.Report(Outcome{WorkerID: id, Accepted: false, Err: err})
		return
	}
	p.Sink.Report(Outcome{WorkerID: id, Accepted: true})
}
