// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"errors"
	"sync"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
)

// Transfer is a handle to a pixel transfer.
//
// The pixel buffer passed to WriteRectAsync must not be modified until Done
// is closed.
type Transfer struct {
	n    int
	done chan struct{}
	err  error
}

func newTransfer(n int) *Transfer {
	return &Transfer{n: n, done: make(chan struct{})}
}

func (t *Transfer) finish(err error) {
	t.err = err
	close(t.done)
}

// Len returns the number of pixel bytes of the transfer.
func (t *Transfer) Len() int {
	return t.n
}

// Done is closed once the transfer completed, successfully or not.
func (t *Transfer) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the transfer completed and returns its error.
func (t *Transfer) Wait() error {
	<-t.done
	return t.err
}

var errQueueClosed = errors.New("mipidisplay: transfer queue closed")

// op is one framed operation for the queue.
type op struct {
	cmd bool
	c   mipidcs.Command
	b   []byte
	// t is finished after the operation ran. It is nil for fire-and-forget
	// operations.
	t *Transfer
	// pixel operations hold a buffer slot.
	pixel bool
}

// queue is the asynchronous bus. A single goroutine executes the operations
// on the framer in submission order, so the D/C line never changes during a
// transfer.
//
// The first error is sticky: the bus state is unknown afterward, so every
// following operation fails with it.
type queue struct {
	f     *framer
	ops   chan op
	slots chan struct{}
	done  chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// newQueue starts the worker. inflight is the number of pixel transfers that
// may be pending at once.
func newQueue(f *framer, inflight int) *queue {
	q := &queue{
		f:     f,
		ops:   make(chan op, 16),
		slots: make(chan struct{}, inflight),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.done)
	for o := range q.ops {
		err := q.sticky()
		if err == nil {
			if o.cmd {
				err = q.f.command(o.c)
			} else {
				err = q.f.data(o.b)
			}
			if err != nil {
				q.fail(err)
			}
		}
		if o.t != nil {
			o.t.finish(err)
		}
		if o.pixel {
			<-q.slots
		}
	}
}

func (q *queue) sticky() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

func (q *queue) fail(err error) {
	q.mu.Lock()
	if q.err == nil {
		q.err = err
	}
	q.mu.Unlock()
}

func (q *queue) submit(o op) error {
	q.mu.Lock()
	err := q.err
	if q.closed {
		err = errQueueClosed
	}
	q.mu.Unlock()
	if err != nil {
		return err
	}
	q.ops <- o
	return nil
}

func (q *queue) command(c mipidcs.Command) error {
	return q.submit(op{cmd: true, c: c})
}

// data copies b, so the caller may reuse it right away. Only pixel bursts
// are sent in place.
func (q *queue) data(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return q.submit(op{b: append([]byte(nil), b...)})
}

func (q *queue) burst(b []byte) *Transfer {
	t := newTransfer(len(b))
	// Wait for a free buffer slot; this is what bounds double buffering to one
	// pending frame.
	q.slots <- struct{}{}
	if err := q.submit(op{b: b, t: t, pixel: true}); err != nil {
		<-q.slots
		t.finish(err)
	}
	return t
}

func (q *queue) flush() error {
	t := newTransfer(0)
	if err := q.submit(op{t: t}); err != nil {
		return err
	}
	return t.Wait()
}

// close flushes the queue and stops the worker.
func (q *queue) close() error {
	err := q.flush()
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return err
	}
	q.closed = true
	q.mu.Unlock()
	close(q.ops)
	<-q.done
	return err
}
