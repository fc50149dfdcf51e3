// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"fmt"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
	"periph.io/x/conn/v3/physic"
)

// Buffering describes how many frame buffers the graphics layer keeps.
//
// With Single buffering the caller renders straight into the buffer being
// sent, so transfers are always blocking. Double and Triple buffering allow
// one or two transfers to be in flight when DMA is enabled.
type Buffering int

// Supported Buffering.
const (
	Single Buffering = iota
	Double
	Triple
)

func (b Buffering) String() string {
	switch b {
	case Single:
		return "single"
	case Double:
		return "double"
	case Triple:
		return "triple"
	default:
		return fmt.Sprintf("Buffering(%d)", int(b))
	}
}

// Set sets the Buffering to a value represented by the string s. Set
// implements the flag.Value interface.
func (b *Buffering) Set(s string) error {
	switch s {
	case "single":
		*b = Single
	case "double":
		*b = Double
	case "triple":
		*b = Triple
	default:
		return fmt.Errorf("unknown buffering %q: expected single, double or triple", s)
	}
	return nil
}

// buffers returns the number of frame buffers.
func (b Buffering) buffers() int {
	return int(b) + 1
}

// Opts defines the options for the device.
type Opts struct {
	// Width and Height of the visible area, in pixels.
	Width  int
	Height int
	// Depth is the number of bits per pixel on the wire. Supported values are
	// 16, 18 and 24. 18 bits pixels are sent as 3 bytes.
	//
	// When zero, it is derived from PixelFormat.
	Depth int
	// OffsetX and OffsetY are added to every coordinate sent to the panel.
	// Panels smaller than the controller memory, like 240x240 modules on a
	// 240x320 ST7789, need them.
	OffsetX int
	OffsetY int
	// AddressMode is the SET_ADDRESS_MODE (MADCTL) parameter; it sets the
	// orientation and the RGB/BGR order. See the mipidcs.AddressMode* bits.
	AddressMode byte
	// PixelFormat is the SET_PIXEL_FORMAT (COLMOD) parameter. When zero, it is
	// derived from Depth.
	PixelFormat byte
	// Invert enables the panel color inversion. Most IPS panels need it.
	Invert bool
	// Buffering is the number of frame buffers used by the caller.
	Buffering Buffering
	// DMA enables asynchronous transfers. It is ignored with Single buffering.
	//
	// The first transfer error is reported by every following operation
	// until Init is called again.
	DMA bool
	// Frequency is the SPI clock. When zero DefaultOpts.Frequency is used.
	Frequency physic.Frequency
	// Logf receives debug messages. It may be nil.
	Logf func(format string, v ...interface{})
}

// DefaultOpts is the configuration of the 320x240 LCD found on Kendryte K210
// boards.
var DefaultOpts = Opts{
	Width:       320,
	Height:      240,
	Depth:       16,
	AddressMode: mipidcs.AddressModeMirrorY | mipidcs.AddressModeSwapXY,
	PixelFormat: mipidcs.PixelFormat16Bit,
	Buffering:   Single,
	Frequency:   40 * physic.MegaHertz,
}

// normalize fills the derived fields and validates the result.
func (o *Opts) normalize() error {
	if o.Frequency == 0 {
		o.Frequency = DefaultOpts.Frequency
	}
	switch {
	case o.Depth == 0 && o.PixelFormat == 0:
		o.Depth = DefaultOpts.Depth
		o.PixelFormat = DefaultOpts.PixelFormat
	case o.Depth == 0:
		o.Depth = mipidcs.PixelFormatBits(o.PixelFormat)
	case o.PixelFormat == 0:
		o.PixelFormat = pixelFormat(o.Depth)
	}
	if o.Width <= 0 || o.Width > 0x10000 {
		return fmt.Errorf("mipidisplay: invalid width %d", o.Width)
	}
	if o.Height <= 0 || o.Height > 0x10000 {
		return fmt.Errorf("mipidisplay: invalid height %d", o.Height)
	}
	if o.OffsetX < 0 || o.OffsetY < 0 {
		return fmt.Errorf("mipidisplay: invalid offset (%d, %d)", o.OffsetX, o.OffsetY)
	}
	if o.Width+o.OffsetX > 0x10000 || o.Height+o.OffsetY > 0x10000 {
		return fmt.Errorf("mipidisplay: offset (%d, %d) overflows the address space", o.OffsetX, o.OffsetY)
	}
	switch o.Depth {
	case 16, 18, 24:
	default:
		return fmt.Errorf("mipidisplay: unsupported depth %d", o.Depth)
	}
	if bits := mipidcs.PixelFormatBits(o.PixelFormat); bits != o.Depth {
		return fmt.Errorf("mipidisplay: pixel format 0x%02X does not match depth %d", o.PixelFormat, o.Depth)
	}
	switch o.Buffering {
	case Single, Double, Triple:
	default:
		return fmt.Errorf("mipidisplay: invalid buffering %s", o.Buffering)
	}
	return nil
}

// async reports whether transfers run on the background queue.
func (o *Opts) async() bool {
	return o.DMA && o.Buffering != Single
}

// bytesPerPixel is the wire size of a pixel.
func (o *Opts) bytesPerPixel() int {
	return (o.Depth + 7) / 8
}

// mode describes the buffering strategy for the debug log.
func (o *Opts) mode() string {
	if o.async() {
		return fmt.Sprintf("%s buffered display with DMA", o.Buffering)
	}
	return fmt.Sprintf("%s buffered display", o.Buffering)
}

func pixelFormat(depth int) byte {
	switch depth {
	case 16:
		return mipidcs.PixelFormat16Bit
	case 18:
		return mipidcs.PixelFormat18Bit
	case 24:
		return mipidcs.PixelFormat24Bit
	}
	return 0
}
