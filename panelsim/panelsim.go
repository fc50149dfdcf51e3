// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
	"github.com/maruel/ansi256"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Opts represents the options available for the emulated panel.
type Opts struct {
	// Width and Height of the addressable memory, in pixels.
	Width  int
	Height int
	// MaxTxSize is the largest transaction accepted, as reported through
	// conn.Limits. Zero means no limit is reported nor enforced.
	MaxTxSize int
	// Record keeps a log of every transaction and command. It grows without
	// bound, leave it off for long running sessions.
	Record bool
	// Palette is used by Render. Defaults to ansi256.Default.
	Palette *ansi256.Palette
	// Format is the default image format of ServeHTTP.
	Format ImageFormat

	_ struct{}
}

// Transfer is one recorded SPI transaction.
type Transfer struct {
	// DC is the level of the D/C line during the transaction.
	DC gpio.Level
	W  []byte
}

// Command is one recorded DCS command with the parameters that followed it.
type Command struct {
	Cmd    mipidcs.Command
	Params []byte
}

// State is the register state of the panel.
type State struct {
	Sleeping    bool
	On          bool
	Inverted    bool
	AddressMode byte
	PixelFormat byte
	// Window is the address window, Max exclusive.
	Window image.Rectangle
	// Resets counts hardware and software resets.
	Resets int
}

// Panel is an emulated display controller.
type Panel struct {
	opts    Opts
	palette ansi256.Palette
	dc      *gpiotest.Pin
	rst     *resetLine

	mu        sync.Mutex
	freq      physic.Frequency
	state     State
	gram      *image.RGBA
	cmd       mipidcs.Command
	params    []byte
	pending   []byte
	cx, cy    int
	transfers []Transfer
	commands  []Command

	// Stream clients, see stream.go.
	clients  map[*client]struct{}
	snapshot map[ImageFormat][]byte
}

// New returns an emulated panel in its power-on state: sleeping, display off,
// memory black.
func New(opts *Opts) *Panel {
	pal := opts.Palette
	if pal == nil {
		pal = ansi256.Default
	}
	gram := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(gram, gram.Bounds(), image.Black, image.Point{}, draw.Src)
	p := &Panel{
		opts:     *opts,
		palette:  *pal,
		dc:       &gpiotest.Pin{N: "DC", L: gpio.High},
		gram:     gram,
		clients:  map[*client]struct{}{},
		snapshot: map[ImageFormat][]byte{},
	}
	p.rst = &resetLine{Pin: gpiotest.Pin{N: "RST", L: gpio.High}, p: p}
	p.resetLocked()
	p.state.Resets = 0
	return p
}

// DC returns the data/command line: low for commands, high for data.
func (p *Panel) DC() gpio.PinOut {
	return p.dc
}

// Reset returns the active low reset line. A rising edge resets the panel.
func (p *Panel) Reset() gpio.PinOut {
	return p.rst
}

// String implements conn.Resource.
func (p *Panel) String() string {
	return fmt.Sprintf("panelsim{%dx%d}", p.opts.Width, p.opts.Height)
}

// Halt implements conn.Resource and terminates the streaming clients.
func (p *Panel) Halt() error {
	p.mu.Lock()
	p.terminateClientsLocked()
	p.mu.Unlock()
	return nil
}

// Connect implements spi.Port.
func (p *Panel) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("panelsim: unsupported %d bits per word", bits)
	}
	if mode&^spi.Mode3 != 0 {
		return nil, fmt.Errorf("panelsim: unsupported mode %s", mode)
	}
	p.mu.Lock()
	p.freq = f
	p.mu.Unlock()
	return p, nil
}

// LimitSpeed implements spi.Port.
func (p *Panel) LimitSpeed(f physic.Frequency) error {
	return nil
}

// Close implements spi.PortCloser.
func (p *Panel) Close() error {
	return p.Halt()
}

// Duplex implements conn.Conn.
func (p *Panel) Duplex() conn.Duplex {
	return conn.Half
}

// MaxTxSize implements conn.Limits.
func (p *Panel) MaxTxSize() int {
	return p.opts.MaxTxSize
}

// Tx implements conn.Conn.
//
// The panel does not drive MISO, so r must be empty.
func (p *Panel) Tx(w, r []byte) error {
	if len(r) != 0 {
		return errors.New("panelsim: reading is not supported")
	}
	if p.opts.MaxTxSize != 0 && len(w) > p.opts.MaxTxSize {
		return fmt.Errorf("panelsim: transaction of %d bytes exceeds the %d bytes limit", len(w), p.opts.MaxTxSize)
	}
	dc := p.dc.Read()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opts.Record {
		p.transfers = append(p.transfers, Transfer{DC: dc, W: append([]byte(nil), w...)})
	}
	if dc == gpio.Low {
		for _, b := range w {
			p.commandLocked(mipidcs.Command(b))
		}
		return nil
	}
	p.dataLocked(w)
	return nil
}

// TxPackets implements spi.Conn.
func (p *Panel) TxPackets(pkts []spi.Packet) error {
	for _, pkt := range pkts {
		if err := p.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

// Frequency returns the clock requested by the last Connect.
func (p *Panel) Frequency() physic.Frequency {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freq
}

// State returns the register state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transfers returns the recorded transactions.
func (p *Panel) Transfers() []Transfer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Transfer(nil), p.transfers...)
}

// Commands returns the recorded commands.
func (p *Panel) Commands() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Command(nil), p.commands...)
}

// ClearLog forgets the recorded transactions and commands.
func (p *Panel) ClearLog() {
	p.mu.Lock()
	p.transfers = nil
	p.commands = nil
	p.mu.Unlock()
}

// At returns the pixel stored in memory at (x, y), regardless of the
// display state.
func (p *Panel) At(x, y int) color.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gram.RGBAAt(x, y)
}

// Snapshot returns what the panel shows: the memory content, inverted when
// inversion is on, or black when the display is off or sleeping.
func (p *Panel) Snapshot() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Panel) snapshotLocked() *image.RGBA {
	img := image.NewRGBA(p.gram.Bounds())
	if !p.state.On || p.state.Sleeping {
		draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
		return img
	}
	copy(img.Pix, p.gram.Pix)
	if p.state.Inverted {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = ^img.Pix[i]
			img.Pix[i+1] = ^img.Pix[i+1]
			img.Pix[i+2] = ^img.Pix[i+2]
		}
	}
	return img
}

func (p *Panel) hardwareReset() {
	p.mu.Lock()
	p.resetLocked()
	p.changedLocked()
	p.mu.Unlock()
}

// resetLocked restores the registers to their reset values. The memory
// content is kept.
func (p *Panel) resetLocked() {
	p.state = State{
		Sleeping:    true,
		PixelFormat: mipidcs.PixelFormat18Bit,
		Window:      p.gram.Bounds(),
		Resets:      p.state.Resets + 1,
	}
	p.cmd = mipidcs.Nop
	p.params = p.params[:0]
	p.pending = p.pending[:0]
	p.cx, p.cy = 0, 0
}

func (p *Panel) commandLocked(c mipidcs.Command) {
	if p.opts.Record {
		p.commands = append(p.commands, Command{Cmd: c})
	}
	p.cmd = c
	p.params = p.params[:0]
	p.pending = p.pending[:0]
	switch c {
	case mipidcs.SoftReset:
		p.resetLocked()
	case mipidcs.EnterSleepMode:
		p.state.Sleeping = true
	case mipidcs.ExitSleepMode:
		p.state.Sleeping = false
	case mipidcs.SetDisplayOff:
		p.state.On = false
	case mipidcs.SetDisplayOn:
		p.state.On = true
	case mipidcs.EnterInvertMode:
		p.state.Inverted = true
	case mipidcs.ExitInvertMode:
		p.state.Inverted = false
	case mipidcs.WriteMemoryStart:
		p.cx, p.cy = p.state.Window.Min.X, p.state.Window.Min.Y
	default:
		return
	}
	p.changedLocked()
}

func (p *Panel) dataLocked(b []byte) {
	if len(b) == 0 {
		return
	}
	if p.opts.Record && len(p.commands) != 0 {
		last := &p.commands[len(p.commands)-1]
		last.Params = append(last.Params, b...)
	}
	switch p.cmd {
	case mipidcs.WriteMemoryStart, mipidcs.WriteMemoryContinue:
		p.pixelsLocked(b)
		return
	}
	p.params = append(p.params, b...)
	switch p.cmd {
	case mipidcs.SetColumnAddress:
		if len(p.params) == 4 {
			p.state.Window.Min.X = int(binary.BigEndian.Uint16(p.params[0:]))
			p.state.Window.Max.X = int(binary.BigEndian.Uint16(p.params[2:])) + 1
		}
	case mipidcs.SetPageAddress:
		if len(p.params) == 4 {
			p.state.Window.Min.Y = int(binary.BigEndian.Uint16(p.params[0:]))
			p.state.Window.Max.Y = int(binary.BigEndian.Uint16(p.params[2:])) + 1
		}
	case mipidcs.SetAddressMode:
		p.state.AddressMode = p.params[0]
	case mipidcs.SetPixelFormat:
		p.state.PixelFormat = p.params[0]
	}
}

// pixelsLocked stores pixel data at the cursor, which walks the window row
// by row and wraps to its top left corner.
func (p *Panel) pixelsLocked(b []byte) {
	bits := mipidcs.PixelFormatBits(p.state.PixelFormat)
	size := bytesPerPixel(p.state.PixelFormat)
	win := p.state.Window
	if win.Empty() {
		return
	}
	p.pending = append(p.pending, b...)
	i := 0
	for ; i+size <= len(p.pending); i += size {
		if image.Pt(p.cx, p.cy).In(p.gram.Rect) {
			p.gram.SetRGBA(p.cx, p.cy, decode(p.pending[i:i+size], bits))
		}
		p.cx++
		if p.cx >= win.Max.X {
			p.cx = win.Min.X
			p.cy++
			if p.cy >= win.Max.Y {
				p.cy = win.Min.Y
			}
		}
	}
	p.pending = append(p.pending[:0], p.pending[i:]...)
	p.changedLocked()
}

// bytesPerPixel is the wire size of a pixel for a COLMOD value. 18 bits
// pixels use the 6 upper bits of 3 bytes.
func bytesPerPixel(format byte) int {
	if mipidcs.PixelFormatBits(format) > 16 {
		return 3
	}
	return 2
}

// decode converts a big endian RGB565 pixel or a RGB666/RGB888 byte triplet.
func decode(b []byte, bits int) color.RGBA {
	switch {
	case len(b) == 2:
		v := binary.BigEndian.Uint16(b)
		r := uint8(v>>11) & 0x1F
		g := uint8(v>>5) & 0x3F
		bl := uint8(v) & 0x1F
		return color.RGBA{r<<3 | r>>2, g<<2 | g>>4, bl<<3 | bl>>2, 0xFF}
	case bits == 24:
		return color.RGBA{b[0], b[1], b[2], 0xFF}
	}
	// 6 bits per channel, left aligned.
	return color.RGBA{b[0] | b[0]>>6, b[1] | b[1]>>6, b[2] | b[2]>>6, 0xFF}
}

// resetLine is the reset input of the panel.
type resetLine struct {
	gpiotest.Pin
	p *Panel
}

// Out implements gpio.PinOut.
func (l *resetLine) Out(v gpio.Level) error {
	prev := l.Pin.Read()
	if err := l.Pin.Out(v); err != nil {
		return err
	}
	if prev == gpio.Low && v == gpio.High {
		l.p.hardwareReset()
	}
	return nil
}

var _ spi.PortCloser = &Panel{}
var _ spi.Conn = &Panel{}
var _ conn.Limits = &Panel{}
var _ gpio.PinOut = &resetLine{}
