// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// ErrReadUnsupported is returned by Ioctl for commands of the read
// vocabulary. The command is sent but the driver does not clock the answer
// back: most modules do not wire MISO.
var ErrReadUnsupported = errors.New("reading from the panel is not supported")

var errClosed = errors.New("mipidisplay: device is closed")

// Dev is an open handle to the display controller.
type Dev struct {
	// Communication
	c   conn.Conn
	dc  gpio.PinOut
	rst gpio.PinOut
	b   bus

	opts Opts
	// sleep is time.Sleep, replaced in tests.
	sleep func(time.Duration)

	mu     sync.Mutex
	win    Window
	closed bool
}

// New returns a Dev that communicates over SPI with a MIPI DCS display
// controller.
//
// # Wiring
//
// Connect SDA to SPI_MOSI, SCL to SPI_CLK, CS to SPI_CS and D/C to a GPIO.
//
// dc is required. rst is the optional hardware reset line; pass nil when
// the panel reset is not wired. Use nil opts for DefaultOpts.
//
// The panel is not touched until Init is called.
func New(p spi.Port, dc, rst gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == nil || dc == gpio.INVALID {
		return nil, errors.New("mipidisplay: a D/C pin is required")
	}
	if rst == gpio.INVALID {
		rst = nil
	}
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if err := o.normalize(); err != nil {
		return nil, err
	}
	c, err := p.Connect(o.Frequency, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("mipidisplay: failed to connect over spi: %w", err)
	}
	if err := dc.Out(gpio.High); err != nil {
		return nil, err
	}
	f := newFramer(c, dc)
	d := &Dev{
		c:     c,
		dc:    dc,
		rst:   rst,
		b:     f,
		opts:  o,
		sleep: time.Sleep,
	}
	if o.async() {
		d.b = newQueue(f, o.Buffering.buffers()-1)
	}
	return d, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("mipidisplay.Dev{%s, %s, %dx%d}", d.c, d.dc, d.opts.Width, d.opts.Height)
}

// Bounds returns the visible area. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.opts.Width, d.opts.Height)
}

// Init brings the panel up: hardware reset if a reset line is wired, soft
// reset, address mode, pixel format, inversion, sleep out, display on and a
// full screen address window.
//
// The delays between steps add up to about a second. The address window
// cache is cleared, since the panel forgot it.
//
// With DMA, a bus error makes every following transfer fail with it. Init
// is the way to recover: it discards the failed queue and starts a new one.
func (d *Dev) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}

	if q, ok := d.b.(*queue); ok && q.sticky() != nil {
		// The panel state is unknown after a bus error; start over on a fresh
		// queue, the reset below brings the panel back in sync.
		d.logf("Restarting the transfer queue after: %v.", q.close())
		d.b = newQueue(q.f, cap(q.slots))
	}
	d.logf("Initialising %s.", d.opts.mode())
	d.logf("Clock rate is set to %s.", d.opts.Frequency)

	eh := errorHandler{b: d.b, rst: d.rst, sleep: d.sleep}
	eh.delay(settleDelay)
	if d.rst != nil {
		eh.rstOut(gpio.Low)
		eh.delay(resetDelay)
		eh.rstOut(gpio.High)
		eh.delay(resetDelay)
	}
	d.win.Reset()

	initDisplay(&eh, &d.win, &d.opts)
	if d.opts.Invert {
		d.logf("Inverting display.")
	}
	if eh.err == nil {
		eh.err = d.b.flush()
	}
	return eh.err
}

// WriteRect sends a rectangle of pixels with its top left corner at (x, y).
//
// pixels must hold at least w*h pixels in the panel wire format, row by
// row. The returned count is the number of pixel bytes sent; the command
// bytes are not included. A rectangle with no area sends nothing and
// returns 0.
//
// With asynchronous transfers enabled, the function returns once the
// transfer is queued and pixels must not be modified until the next Flush.
// Use WriteRectAsync to wait on a single transfer.
func (d *Dev) WriteRect(x, y, w, h int, pixels []byte) (int, error) {
	t, err := d.WriteRectAsync(x, y, w, h, pixels)
	if err != nil {
		return 0, err
	}
	select {
	case <-t.Done():
		if err := t.Wait(); err != nil {
			return 0, err
		}
	default:
	}
	return t.Len(), nil
}

// WriteRectAsync is WriteRect returning a handle to the pixel transfer.
//
// With blocking transfers the returned Transfer is already done.
func (d *Dev) WriteRectAsync(x, y, w, h int, pixels []byte) (*Transfer, error) {
	if w == 0 || h == 0 {
		t := newTransfer(0)
		t.finish(nil)
		return t, nil
	}
	if x < 0 || y < 0 || w < 0 || h < 0 {
		return nil, fmt.Errorf("mipidisplay: invalid rectangle %dx%d at (%d, %d)", w, h, x, y)
	}
	// Offsets are at most 0x10000-Width, so none of these can overflow.
	if w > 0x10000 || h > 0x10000 || x > 0x10000-w-d.opts.OffsetX || y > 0x10000-h-d.opts.OffsetY {
		return nil, fmt.Errorf("mipidisplay: rectangle %dx%d at (%d, %d) is out of the address space", w, h, x, y)
	}
	bpp := d.opts.bytesPerPixel()
	if len(pixels)/bpp/w < h {
		return nil, fmt.Errorf("mipidisplay: invalid pixel buffer length; expected %d bytes, got %d bytes", uint64(w)*uint64(h)*uint64(bpp), len(pixels))
	}
	n := w * h * bpp

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errClosed
	}
	eh := errorHandler{b: d.b}
	setAddress(&eh, &d.win, x, y, x+w-1, y+h-1, d.opts.OffsetX, d.opts.OffsetY)
	if eh.err != nil {
		return nil, eh.err
	}
	return d.b.burst(pixels[:n]), nil
}

// Ioctl sends a raw DCS command with its parameters. data may be empty.
//
// For commands of the read vocabulary (mipidcs.IsRead), the command is sent
// and an error wrapping ErrReadUnsupported is returned; data is left
// untouched.
func (d *Dev) Ioctl(c mipidcs.Command, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	eh := errorHandler{b: d.b}
	sendRaw(&eh, c, data)
	if eh.err != nil {
		return eh.err
	}
	if mipidcs.IsRead(c) {
		return fmt.Errorf("mipidisplay: %s: %w", c, ErrReadUnsupported)
	}
	return nil
}

// Invert the display colors.
func (d *Dev) Invert(invert bool) error {
	c := mipidcs.ExitInvertMode
	if invert {
		c = mipidcs.EnterInvertMode
	}
	return d.Ioctl(c, nil)
}

// Halt implements conn.Resource.
//
// It turns the display off. Init turns it back on.
func (d *Dev) Halt() error {
	if err := d.Ioctl(mipidcs.SetDisplayOff, nil); err != nil {
		return err
	}
	return d.Flush()
}

// Flush waits for all queued transfers. It returns the first transfer error,
// if any.
func (d *Dev) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	return d.b.flush()
}

// Close waits for the queued transfers and releases the transfer goroutine.
//
// The SPI port is owned by the caller and is not closed.
func (d *Dev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.b.close()
}

// Window returns the address window the panel is believed to hold.
func (d *Dev) Window() Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.win
}

// ResetWindow forgets the address window, so the next write reprograms it.
//
// Call it after the panel was reset without going through Init.
func (d *Dev) ResetWindow() {
	d.mu.Lock()
	d.win.Reset()
	d.mu.Unlock()
}

func (d *Dev) logf(format string, v ...interface{}) {
	if d.opts.Logf != nil {
		d.opts.Logf(format, v...)
	}
}

var _ conn.Resource = &Dev{}
