package batch

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/umekomi/internal/tokenize"
)

// ErrCoalescerClosed is returned by Submit after Close.
var ErrCoalescerClosed = errors.New("coalescer is closed")

// Result is the outcome delivered for one submitted input.
type Result struct {
	Vector []float32
	Err    error
}

// Pending is one queued input awaiting batch dispatch.
type Pending struct {
	Input tokenize.EncodedInput

	ctx context.Context
	out chan Result
}

// Finish delivers the outcome for this input. Called exactly once by the
// dispatch function (or by the coalescer itself on cancellation).
func (p *Pending) Finish(vec []float32, err error) {
	p.out <- Result{Vector: vec, Err: err}
}

// DispatchFunc runs inference for one accumulated group and finishes every
// pending in it.
type DispatchFunc func(pend []*Pending)

// Coalescer accumulates inputs from concurrent callers into batches,
// dispatching when a batch fills or the wait bound elapses. The bound keeps
// single requests from starving; there is no unbounded queuing. A cancelled
// request is excluded from batches not yet dispatched without disturbing its
// co-batched peers.
type Coalescer struct {
	in       chan *Pending
	done     chan struct{}
	finished chan struct{}

	maxBatch int
	maxWait  time.Duration
	dispatch DispatchFunc
}

// NewCoalescer starts a coalescer. maxWait <= 0 dispatches every input
// immediately.
func NewCoalescer(maxBatch int, maxWait time.Duration, dispatch DispatchFunc) *Coalescer {
	if maxBatch <= 0 {
		maxBatch = 1
	}
	c := &Coalescer{
		in:       make(chan *Pending, maxBatch),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		maxBatch: maxBatch,
		maxWait:  maxWait,
		dispatch: dispatch,
	}
	go c.run()
	return c
}

// Submit queues one input and returns the channel its result will arrive on.
func (c *Coalescer) Submit(ctx context.Context, in tokenize.EncodedInput) (<-chan Result, error) {
	p := &Pending{Input: in, ctx: ctx, out: make(chan Result, 1)}
	select {
	case c.in <- p:
		return p.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrCoalescerClosed
	}
}

// Close stops the coalescer after flushing whatever is queued.
func (c *Coalescer) Close() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	<-c.finished
}

func (c *Coalescer) run() {
	defer close(c.finished)

	var buf []*Pending
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	flush := func() {
		stopTimer()
		if len(buf) == 0 {
			return
		}
		live := buf[:0]
		for _, p := range buf {
			if err := p.ctx.Err(); err != nil {
				p.Finish(nil, err)
				continue
			}
			live = append(live, p)
		}
		if len(live) > 0 {
			c.dispatch(live)
		}
		buf = nil
	}

	for {
		select {
		case p := <-c.in:
			if err := p.ctx.Err(); err != nil {
				p.Finish(nil, err)
				continue
			}
			buf = append(buf, p)
			if len(buf) >= c.maxBatch || c.maxWait <= 0 {
				flush()
			} else if timer == nil {
				timer = time.NewTimer(c.maxWait)
				timerC = timer.C
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		case <-c.done:
			// Drain anything racing with Close, then flush.
			for {
				select {
				case p := <-c.in:
					buf = append(buf, p)
					continue
				default:
				}
				break
			}
			flush()
			return
		}
	}
}
