// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
	"github.com/GermanBionicSystems/mipidisplay/panelsim"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spitest"
)

// newPanel returns a Dev wired to an emulated panel covering the
// configured area and offsets.
func newPanel(t *testing.T, opts *Opts, maxTxSize int) (*Dev, *panelsim.Panel) {
	t.Helper()
	p := panelsim.New(&panelsim.Opts{
		Width:     opts.Width + opts.OffsetX,
		Height:    opts.Height + opts.OffsetY,
		MaxTxSize: maxTxSize,
		Record:    true,
	})
	d, err := New(p, p.DC(), p.Reset(), opts)
	if err != nil {
		t.Fatal(err)
	}
	d.sleep = func(time.Duration) {}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	return d, p
}

func newPanelInit(t *testing.T, opts *Opts, maxTxSize int) (*Dev, *panelsim.Panel) {
	t.Helper()
	d, p := newPanel(t, opts, maxTxSize)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	p.ClearLog()
	return d, p
}

func commands(p *panelsim.Panel) []mipidcs.Command {
	var out []mipidcs.Command
	for _, c := range p.Commands() {
		out = append(out, c.Cmd)
	}
	return out
}

// rgb565 returns n pixels of the same color.
func rgb565(n int, v uint16) []byte {
	b := make([]byte, 0, 2*n)
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>8), byte(v))
	}
	return b
}

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		name    string
		dc      gpio.PinOut
		opts    *Opts
		wantErr bool
	}{
		{name: "default", dc: &gpiotest.Pin{N: "DC"}},
		{name: "no D/C", dc: nil, wantErr: true},
		{name: "invalid D/C", dc: gpio.INVALID, wantErr: true},
		{name: "zero width", dc: &gpiotest.Pin{}, opts: &Opts{Height: 10}, wantErr: true},
		{name: "depth 12", dc: &gpiotest.Pin{}, opts: &Opts{Width: 10, Height: 10, Depth: 12}, wantErr: true},
		{
			name:    "format mismatch",
			dc:      &gpiotest.Pin{},
			opts:    &Opts{Width: 10, Height: 10, Depth: 16, PixelFormat: mipidcs.PixelFormat24Bit},
			wantErr: true,
		},
		{
			name:    "offset overflow",
			dc:      &gpiotest.Pin{},
			opts:    &Opts{Width: 10, Height: 10, OffsetX: 0xFFFF},
			wantErr: true,
		},
		{name: "buffering", dc: &gpiotest.Pin{}, opts: &Opts{Width: 1, Height: 1, Buffering: 5}, wantErr: true},
		{name: "derived depth", dc: &gpiotest.Pin{}, opts: &Opts{Width: 1, Height: 1, PixelFormat: mipidcs.PixelFormat18Bit}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, err := New(&spitest.Playback{}, tc.dc, nil, tc.opts)
			if tc.wantErr {
				if err == nil {
					t.Errorf("New() must fail, got %s", d)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			if err := d.Close(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestNewDerived(t *testing.T) {
	d, err := New(&spitest.Playback{}, &gpiotest.Pin{N: "DC"}, gpio.INVALID, &Opts{Width: 240, Height: 135, PixelFormat: mipidcs.PixelFormat18Bit})
	if err != nil {
		t.Fatal(err)
	}
	if d.rst != nil {
		t.Error("gpio.INVALID must be handled as no reset line")
	}
	if d.opts.Depth != 18 || d.opts.bytesPerPixel() != 3 {
		t.Errorf("depth %d, %d bytes per pixel", d.opts.Depth, d.opts.bytesPerPixel())
	}
	if d.opts.Frequency != DefaultOpts.Frequency {
		t.Errorf("frequency %s", d.opts.Frequency)
	}
	if diff := cmp.Diff(d.String(), "mipidisplay.Dev{playback, DC(0), 240x135}"); diff != "" {
		t.Errorf("String() difference (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(d.Bounds(), image.Rect(0, 0, 240, 135)); diff != "" {
		t.Errorf("Bounds() difference (-got +want):\n%s", diff)
	}
}

func TestInit(t *testing.T) {
	var logs []string
	opts := Opts{
		Width:       240,
		Height:      240,
		OffsetY:     80,
		AddressMode: mipidcs.AddressModeMirrorX | mipidcs.AddressModeMirrorY,
		Invert:      true,
		Logf: func(format string, v ...interface{}) {
			logs = append(logs, fmt.Sprintf(format, v...))
		},
	}
	d, p := newPanel(t, &opts, 0)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	want := []mipidcs.Command{
		mipidcs.SoftReset,
		mipidcs.SetAddressMode,
		mipidcs.SetPixelFormat,
		mipidcs.EnterInvertMode,
		mipidcs.ExitSleepMode,
		mipidcs.SetDisplayOn,
		mipidcs.SetColumnAddress,
		mipidcs.SetPageAddress,
		mipidcs.WriteMemoryStart,
	}
	if diff := cmp.Diff(commands(p), want); diff != "" {
		t.Errorf("Init() commands difference (-got +want):\n%s", diff)
	}
	wantState := panelsim.State{
		On:          true,
		Inverted:    true,
		AddressMode: 0xC0,
		PixelFormat: mipidcs.PixelFormat16Bit,
		Window:      image.Rect(0, 80, 240, 320),
		// Hardware reset, then soft reset.
		Resets: 2,
	}
	if diff := cmp.Diff(p.State(), wantState); diff != "" {
		t.Errorf("State() difference (-got +want):\n%s", diff)
	}
	wantLogs := []string{
		"Initialising single buffered display.",
		"Clock rate is set to 40MHz.",
		"Inverting display.",
	}
	if diff := cmp.Diff(logs, wantLogs); diff != "" {
		t.Errorf("Logf() difference (-got +want):\n%s", diff)
	}
	wantWin := Window{X1: 0, X2: 239, Y1: 80, Y2: 319, ColumnsSet: true, PagesSet: true}
	if diff := cmp.Diff(d.Window(), wantWin); diff != "" {
		t.Errorf("Window() difference (-got +want):\n%s", diff)
	}
}

func TestInitTwice(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 240, Height: 240}, 0)
	if _, err := d.WriteRect(0, 0, 240, 240, rgb565(240*240, 0)); err != nil {
		t.Fatal(err)
	}
	p.ClearLog()
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	var got []mipidcs.Command
	for _, c := range commands(p) {
		if c == mipidcs.SetColumnAddress || c == mipidcs.SetPageAddress {
			got = append(got, c)
		}
	}
	want := []mipidcs.Command{mipidcs.SetColumnAddress, mipidcs.SetPageAddress}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("second Init() difference (-got +want):\n%s", diff)
	}
}

func TestInitNoReset(t *testing.T) {
	p := panelsim.New(&panelsim.Opts{Width: 4, Height: 4})
	d, err := New(p, p.DC(), nil, &Opts{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	d.sleep = func(time.Duration) {}
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if got := p.State().Resets; got != 1 {
		t.Errorf("got %d resets, want only the soft reset", got)
	}
}

func TestWriteRect(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 16, Height: 16, OffsetX: 2}, 0)
	n, err := d.WriteRect(3, 4, 10, 5, rgb565(50, 0xF800))
	if err != nil {
		t.Fatal(err)
	}
	if n != 100 {
		t.Errorf("WriteRect() = %d, want 100", n)
	}
	red := color.RGBA{0xFF, 0, 0, 0xFF}
	black := color.RGBA{0, 0, 0, 0xFF}
	for _, e := range []struct {
		x, y int
		want color.RGBA
	}{
		{5, 4, red}, {14, 8, red}, {4, 4, black}, {15, 4, black}, {5, 9, black},
	} {
		if got := p.At(e.x, e.y); got != e.want {
			t.Errorf("At(%d, %d) = %v, want %v", e.x, e.y, got, e.want)
		}
	}

	want := []panelsim.Command{
		{Cmd: mipidcs.SetColumnAddress, Params: []byte{0, 5, 0, 14}},
		{Cmd: mipidcs.SetPageAddress, Params: []byte{0, 4, 0, 8}},
		{Cmd: mipidcs.WriteMemoryStart, Params: rgb565(50, 0xF800)},
	}
	if diff := cmp.Diff(p.Commands(), want); diff != "" {
		t.Errorf("Commands() difference (-got +want):\n%s", diff)
	}

	// Same window: only the memory write.
	p.ClearLog()
	if _, err := d.WriteRect(3, 4, 10, 5, rgb565(50, 0x001F)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(commands(p), []mipidcs.Command{mipidcs.WriteMemoryStart}); diff != "" {
		t.Errorf("cached write difference (-got +want):\n%s", diff)
	}
	if got := p.At(5, 4); got != (color.RGBA{0, 0, 0xFF, 0xFF}) {
		t.Errorf("At(5, 4) = %v", got)
	}
}

func TestWriteRectPlayback(t *testing.T) {
	port := spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0x2A}},
				{W: []byte{0, 1, 0, 2}},
				{W: []byte{0x2B}},
				{W: []byte{0, 0, 0, 0}},
				{W: []byte{0x2C}},
				{W: []byte{0xAA, 0xBB, 0xCC, 0xDD}},
			},
		},
	}
	dc := gpiotest.Pin{N: "DC"}
	d, err := New(&port, &dc, nil, &Opts{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.WriteRect(1, 0, 2, 1, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}); err != nil {
		t.Fatal(err)
	}
	if dc.Read() != gpio.High {
		t.Error("D/C must be high after pixel data")
	}
	if err := port.Close(); err != nil {
		t.Error(err)
	}
}

func TestWriteRectEmpty(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 8, Height: 8}, 0)
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 0, 5),
		image.Rect(2, 2, 2+4, 2),
	} {
		n, err := d.WriteRect(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), nil)
		if err != nil || n != 0 {
			t.Errorf("WriteRect(%v) = %d, %v", r, n, err)
		}
	}
	if got := p.Transfers(); len(got) != 0 {
		t.Errorf("got %d transfers, want none", len(got))
	}
}

func TestWriteRectInvalid(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 8, Height: 8}, 0)
	for _, tc := range []struct {
		x, y, w, h int
		pixels     []byte
	}{
		{-1, 0, 1, 1, make([]byte, 2)},
		{0, 0, -1, 1, make([]byte, 2)},
		{0, 0, 2, 2, make([]byte, 7)},
		{0, 0xFFFF, 1, 2, make([]byte, 4)},
		{0, 0, math.MaxInt, 1, make([]byte, 16)},
		{math.MaxInt, 0, 1, 1, make([]byte, 16)},
		{0, 0, 0x10000, 0x10000, make([]byte, 16)},
	} {
		if _, err := d.WriteRect(tc.x, tc.y, tc.w, tc.h, tc.pixels); err == nil {
			t.Errorf("WriteRect(%d, %d, %d, %d, %d bytes) must fail", tc.x, tc.y, tc.w, tc.h, len(tc.pixels))
		}
	}
	if got := p.Transfers(); len(got) != 0 {
		t.Errorf("got %d transfers, want none", len(got))
	}
}

func TestWriteRectOverflow(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 8, Height: 8, OffsetX: 1, OffsetY: 1}, 0)
	want := d.Window()
	for _, tc := range []struct {
		x, y, w, h int
	}{
		{1, 0, math.MaxInt, 1},
		{0, 1, 1, math.MaxInt},
		{0, 0, math.MaxInt / 2, 3},
		{0xFFFF, 0, 1, 1},
	} {
		if _, err := d.WriteRect(tc.x, tc.y, tc.w, tc.h, make([]byte, 16)); err == nil {
			t.Errorf("WriteRect(%d, %d, %d, %d) must fail", tc.x, tc.y, tc.w, tc.h)
		}
	}
	if got := p.Transfers(); len(got) != 0 {
		t.Errorf("got %d transfers, want none", len(got))
	}
	if got := d.Window(); got != want {
		t.Errorf("Window() = %s, want %s", got, want)
	}
}

func TestWriteRectChunks(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 10, Height: 10}, 64)
	if _, err := d.WriteRect(0, 0, 10, 10, rgb565(100, 0xFFFF)); err != nil {
		t.Fatal(err)
	}
	tr := p.Transfers()
	if len(tr) != 5 {
		t.Fatalf("got %d transfers, want 5", len(tr))
	}
	if diff := cmp.Diff(tr[0], panelsim.Transfer{DC: gpio.Low, W: []byte{0x2C}}); diff != "" {
		t.Errorf("Transfers()[0] difference (-got +want):\n%s", diff)
	}
	for i, want := range []int{64, 64, 64, 8} {
		if got := tr[i+1]; got.DC != gpio.High || len(got.W) != want {
			t.Errorf("Transfers()[%d] = %d bytes, D/C %s; want %d bytes, D/C High", i+1, len(got.W), got.DC, want)
		}
	}
}

func TestWriteRect18Bit(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 4, Height: 4, Depth: 18}, 0)
	n, err := d.WriteRect(0, 0, 1, 2, []byte{0xFC, 0, 0, 0, 0xFC, 0})
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("WriteRect() = %d, want 6", n)
	}
	if got := p.At(0, 1); got != (color.RGBA{0, 0xFF, 0, 0xFF}) {
		t.Errorf("At(0, 1) = %v", got)
	}
}

func TestIoctl(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 4, Height: 4}, 0)
	if err := d.Ioctl(mipidcs.SetGammaCurve, []byte{0x02}); err != nil {
		t.Fatal(err)
	}
	buf := []byte{0x55, 0x55, 0x55}
	err := d.Ioctl(mipidcs.GetDisplayID, buf)
	if !errors.Is(err, ErrReadUnsupported) {
		t.Errorf("Ioctl(GET_DISPLAY_ID) = %v, want ErrReadUnsupported", err)
	}
	if diff := cmp.Diff(buf, []byte{0x55, 0x55, 0x55}); diff != "" {
		t.Errorf("read buffer was modified (-got +want):\n%s", diff)
	}
	want := []panelsim.Command{
		{Cmd: mipidcs.SetGammaCurve, Params: []byte{0x02}},
		{Cmd: mipidcs.GetDisplayID},
	}
	if diff := cmp.Diff(p.Commands(), want); diff != "" {
		t.Errorf("Commands() difference (-got +want):\n%s", diff)
	}
}

func TestInvertHalt(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 4, Height: 4}, 0)
	if err := d.Invert(true); err != nil {
		t.Fatal(err)
	}
	if !p.State().Inverted {
		t.Error("Invert(true) had no effect")
	}
	if err := d.Invert(false); err != nil {
		t.Fatal(err)
	}
	if p.State().Inverted {
		t.Error("Invert(false) had no effect")
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if p.State().On {
		t.Error("Halt() must turn the display off")
	}
}

func TestResetWindow(t *testing.T) {
	d, p := newPanelInit(t, &Opts{Width: 4, Height: 4}, 0)
	d.ResetWindow()
	if diff := cmp.Diff(d.Window(), Window{}); diff != "" {
		t.Errorf("Window() difference (-got +want):\n%s", diff)
	}
	if _, err := d.WriteRect(0, 0, 4, 4, rgb565(16, 0)); err != nil {
		t.Fatal(err)
	}
	want := []mipidcs.Command{mipidcs.SetColumnAddress, mipidcs.SetPageAddress, mipidcs.WriteMemoryStart}
	if diff := cmp.Diff(commands(p), want); diff != "" {
		t.Errorf("commands difference (-got +want):\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	d, _ := newPanelInit(t, &Opts{Width: 4, Height: 4}, 0)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := d.WriteRect(0, 0, 1, 1, rgb565(1, 0)); err == nil {
		t.Error("WriteRect() after Close() must fail")
	}
	if err := d.Init(); err == nil {
		t.Error("Init() after Close() must fail")
	}
}

func TestBusError(t *testing.T) {
	port := spitest.Playback{Playback: conntest.Playback{DontPanic: true}}
	d, err := New(&port, &gpiotest.Pin{}, nil, &Opts{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	d.sleep = func(time.Duration) {}
	if err := d.Init(); err == nil {
		t.Error("Init() must fail")
	}
	if _, err := d.WriteRect(0, 0, 1, 1, rgb565(1, 0)); err == nil {
		t.Error("WriteRect() must fail")
	}
	if w := d.Window(); w.ColumnsSet || w.PagesSet {
		t.Errorf("failed writes must not be cached: %s", w)
	}
}

func TestAsync(t *testing.T) {
	for _, b := range []Buffering{Double, Triple} {
		t.Run(b.String(), func(t *testing.T) {
			d, p := newPanelInit(t, &Opts{Width: 8, Height: 8, Buffering: b, DMA: true}, 16)
			if _, ok := d.b.(*queue); !ok {
				t.Fatalf("bus is %T, want the queue", d.b)
			}
			frames := [][]byte{rgb565(64, 0xF800), rgb565(32, 0x07E0), rgb565(16, 0x001F)}
			var ts []*Transfer
			for i, f := range frames {
				// Shrinking bands, so later writes overwrite the top rows.
				t1, err := d.WriteRectAsync(0, 0, 8, 8>>uint(i), f)
				if err != nil {
					t.Fatal(err)
				}
				ts = append(ts, t1)
			}
			for i, t1 := range ts {
				if err := t1.Wait(); err != nil {
					t.Fatal(err)
				}
				if got, want := t1.Len(), len(frames[i]); got != want {
					t.Errorf("Len() = %d, want %d", got, want)
				}
			}
			if err := d.Flush(); err != nil {
				t.Fatal(err)
			}
			blue := color.RGBA{0, 0, 0xFF, 0xFF}
			green := color.RGBA{0, 0xFF, 0, 0xFF}
			red := color.RGBA{0xFF, 0, 0, 0xFF}
			for y, want := range []color.RGBA{blue, blue, green, green, red, red, red, red} {
				if got := p.At(7, y); got != want {
					t.Errorf("At(7, %d) = %v, want %v", y, got, want)
				}
			}
			// Commands are never reordered around pixel data.
			for i, tr := range p.Transfers() {
				if tr.DC == gpio.Low && len(tr.W) != 1 {
					t.Errorf("Transfers()[%d] is a %d bytes command", i, len(tr.W))
				}
			}
		})
	}
}

// gatedPort holds every transaction of block bytes until release is closed.
type gatedPort struct {
	block   int
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPort) String() string { return "gated" }
func (g *gatedPort) LimitSpeed(f physic.Frequency) error { return nil }
func (g *gatedPort) Duplex() conn.Duplex { return conn.Half }
func (g *gatedPort) TxPackets(p []spi.Packet) error { return nil }
func (g *gatedPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	return g, nil
}

func (g *gatedPort) Tx(w, r []byte) error {
	if len(w) == g.block {
		g.entered <- struct{}{}
		<-g.release
	}
	return nil
}

func TestAsyncBackBuffer(t *testing.T) {
	for _, tc := range []struct {
		b       Buffering
		blocked bool
	}{
		{Double, true},
		{Triple, false},
	} {
		t.Run(tc.b.String(), func(t *testing.T) {
			// A 2x2 rectangle is 8 bytes, the address ranges are 4.
			port := &gatedPort{block: 8, entered: make(chan struct{}, 4), release: make(chan struct{})}
			d, err := New(port, &gpiotest.Pin{}, nil, &Opts{Width: 4, Height: 4, Buffering: tc.b, DMA: true})
			if err != nil {
				t.Fatal(err)
			}
			released := false
			t.Cleanup(func() {
				if !released {
					close(port.release)
				}
				if err := d.Close(); err != nil {
					t.Error(err)
				}
			})

			first, err := d.WriteRectAsync(0, 0, 2, 2, rgb565(4, 0xFFFF))
			if err != nil {
				t.Fatal(err)
			}
			<-port.entered

			second := make(chan error, 1)
			go func() {
				_, err := d.WriteRectAsync(0, 0, 2, 2, rgb565(4, 0))
				second <- err
			}()
			select {
			case err := <-second:
				if tc.blocked {
					t.Fatalf("WriteRectAsync() returned %v while the other buffer is in flight", err)
				}
				if err != nil {
					t.Fatal(err)
				}
			case <-time.After(100 * time.Millisecond):
				if !tc.blocked {
					t.Fatal("WriteRectAsync() must not wait with a free buffer")
				}
			}
			select {
			case <-first.Done():
				t.Fatal("the first transfer is held by the bus")
			default:
			}

			close(port.release)
			released = true
			if err := first.Wait(); err != nil {
				t.Fatal(err)
			}
			if tc.blocked {
				if err := <-second; err != nil {
					t.Fatal(err)
				}
			}
			if err := d.Flush(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestAsyncSticky(t *testing.T) {
	port := spitest.Playback{Playback: conntest.Playback{DontPanic: true}}
	d, err := New(&port, &gpiotest.Pin{}, nil, &Opts{Width: 4, Height: 4, Buffering: Double, DMA: true})
	if err != nil {
		t.Fatal(err)
	}
	tr, err := d.WriteRectAsync(0, 0, 1, 1, rgb565(1, 0))
	if err != nil {
		// The failure may already have been reported by the queue.
		t.Logf("WriteRectAsync() = %v", err)
	} else if err := tr.Wait(); err == nil {
		t.Error("Wait() must fail")
	}
	if err := d.Flush(); err == nil {
		t.Error("Flush() must report the first error")
	}
	if _, err := d.WriteRect(0, 0, 1, 1, rgb565(1, 0)); err == nil {
		t.Error("the error must be sticky")
	}
	if err := d.Close(); err == nil {
		t.Error("Close() must report the first error")
	}
}

// flakyPort is a panel whose bus fails while failing is set.
type flakyPort struct {
	*panelsim.Panel
	failing atomic.Bool
}

func (f *flakyPort) Connect(freq physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if _, err := f.Panel.Connect(freq, mode, bits); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *flakyPort) Tx(w, r []byte) error {
	if f.failing.Load() {
		return errors.New("bus error")
	}
	return f.Panel.Tx(w, r)
}

func TestAsyncInitRecovers(t *testing.T) {
	p := panelsim.New(&panelsim.Opts{Width: 4, Height: 4})
	port := &flakyPort{Panel: p}
	var logs []string
	d, err := New(port, p.DC(), p.Reset(), &Opts{
		Width:     4,
		Height:    4,
		Buffering: Double,
		DMA:       true,
		Logf: func(format string, v ...interface{}) {
			logs = append(logs, fmt.Sprintf(format, v...))
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	d.sleep = func(time.Duration) {}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}

	port.failing.Store(true)
	// The error may surface on the write or on the flush.
	_, _ = d.WriteRect(0, 0, 4, 4, rgb565(16, 0xF800))
	if err := d.Flush(); err == nil {
		t.Fatal("Flush() must fail")
	}
	port.failing.Store(false)
	if err := d.Flush(); err == nil {
		t.Fatal("the error must stay until Init")
	}

	logs = nil
	if err := d.Init(); err != nil {
		t.Fatalf("Init() after a bus error: %v", err)
	}
	if len(logs) == 0 || logs[0] != "Restarting the transfer queue after: bus error." {
		t.Errorf("logs = %q", logs)
	}
	if _, err := d.WriteRect(0, 0, 4, 4, rgb565(16, 0xF800)); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}
	if got, want := p.At(3, 3), (color.RGBA{0xFF, 0, 0, 0xFF}); got != want {
		t.Errorf("At(3, 3) = %v, want %v", got, want)
	}
	if s := p.State(); !s.On || s.Sleeping {
		t.Errorf("State() = %+v, want the panel on", s)
	}
}

func TestBuffering(t *testing.T) {
	var b Buffering
	for _, s := range []string{"single", "double", "triple"} {
		if err := b.Set(s); err != nil {
			t.Fatal(err)
		}
		if b.String() != s {
			t.Errorf("String() = %q, want %q", b, s)
		}
	}
	if err := b.Set("quad"); err == nil {
		t.Error("Set(quad) must fail")
	}
	if got := Buffering(7).String(); got != "Buffering(7)" {
		t.Errorf("String() = %q", got)
	}
	o := Opts{Buffering: Triple}
	if got := o.mode(); got != "triple buffered display" {
		t.Errorf("mode() = %q", got)
	}
	o.DMA = true
	if got := o.mode(); got != "triple buffered display with DMA" {
		t.Errorf("mode() = %q", got)
	}
}
