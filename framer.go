// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"time"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// bus moves framed bytes to the panel.
//
// Operations are executed in the order they are submitted.
type bus interface {
	command(c mipidcs.Command) error
	data(b []byte) error
	// burst sends pixel data. The returned Transfer completes once b is no
	// longer referenced.
	burst(b []byte) *Transfer
	// flush waits for every submitted operation.
	flush() error
	close() error
}

// framer is the blocking bus. It drives the D/C line and transfers on the
// caller's goroutine.
type framer struct {
	c         conn.Conn
	dc        gpio.PinOut
	maxTxSize int
}

func newFramer(c conn.Conn, dc gpio.PinOut) *framer {
	// Get the maxTxSize from the conn if it implements the conn.Limits interface,
	// otherwise use 4096 bytes.
	maxTxSize := 0
	if limits, ok := c.(conn.Limits); ok {
		maxTxSize = limits.MaxTxSize()
	}
	if maxTxSize == 0 {
		maxTxSize = 4096 // Use a conservative default.
	}
	return &framer{c: c, dc: dc, maxTxSize: maxTxSize}
}

// command sends a single opcode with D/C low.
func (f *framer) command(c mipidcs.Command) error {
	if err := f.dc.Out(gpio.Low); err != nil {
		return err
	}
	return f.c.Tx([]byte{byte(c)}, nil)
}

// data sends b with D/C high, split in chunks the bus accepts. An empty b
// does nothing, not even toggle D/C.
func (f *framer) data(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := f.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) != 0 {
		chunk := b
		if len(chunk) > f.maxTxSize {
			chunk = b[:f.maxTxSize]
		}
		if err := f.c.Tx(chunk, nil); err != nil {
			return err
		}
		b = b[len(chunk):]
	}
	return nil
}

func (f *framer) burst(b []byte) *Transfer {
	t := newTransfer(len(b))
	t.finish(f.data(b))
	return t
}

func (f *framer) flush() error {
	return nil
}

func (f *framer) close() error {
	return nil
}

// errorHandler is a wrapper for error management.
//
// Once an operation failed, the following ones are skipped and the first
// error is kept.
type errorHandler struct {
	b     bus
	rst   gpio.PinOut
	sleep func(time.Duration)
	err   error
}

func (eh *errorHandler) sendCommand(c mipidcs.Command) {
	if eh.err != nil {
		return
	}
	eh.err = eh.b.command(c)
}

func (eh *errorHandler) sendData(d []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.b.data(d)
}

func (eh *errorHandler) rstOut(l gpio.Level) {
	if eh.err != nil {
		return
	}
	eh.err = eh.rst.Out(l)
}

// delay waits for everything submitted to reach the panel, then sleeps.
func (eh *errorHandler) delay(d time.Duration) {
	if eh.err != nil {
		return
	}
	if eh.err = eh.b.flush(); eh.err != nil {
		return
	}
	eh.sleep(d)
}

func (eh *errorHandler) failed() bool {
	return eh.err != nil
}
