// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidcs

// Address mode bits, the parameter of SetAddressMode (MADCTL).
const (
	AddressModeMirrorY   byte = 0x80 // Page address order, bottom to top.
	AddressModeMirrorX   byte = 0x40 // Column address order, right to left.
	AddressModeSwapXY    byte = 0x20 // Page/column exchange.
	AddressModeRefreshBT byte = 0x10 // Refresh bottom to top.
	AddressModeBGR       byte = 0x08
	AddressModeRGB       byte = 0x00
	AddressModeLatchRL   byte = 0x04 // Refresh right to left.
	AddressModeFlipX     byte = 0x02
	AddressModeFlipY     byte = 0x01
)

// Pixel formats, the parameter of SetPixelFormat (COLMOD).
//
// The same value is used for the DPI (upper nibble) and DBI (lower nibble)
// interfaces.
const (
	PixelFormat3Bit  byte = 0x11
	PixelFormat8Bit  byte = 0x22
	PixelFormat12Bit byte = 0x33
	PixelFormat16Bit byte = 0x55
	PixelFormat18Bit byte = 0x66
	PixelFormat24Bit byte = 0x77
)

// PixelFormatBits returns the number of bits per pixel encoded by a
// SetPixelFormat parameter, or 0 if the value is not a known format.
//
// Only the DBI nibble is considered.
func PixelFormatBits(format byte) int {
	switch format & 0x07 {
	case 0x01:
		return 3
	case 0x02:
		return 8
	case 0x03:
		return 12
	case 0x05:
		return 16
	case 0x06:
		return 18
	case 0x07:
		return 24
	}
	return 0
}
