// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mipidisplay drives a TFT LCD controller implementing the MIPI
// Display Command Set over a 4-wire SPI bus (SCK, MOSI, CS plus a D/C line).
//
// The driver brings the panel out of reset, then pushes already rendered
// pixel rectangles into the panel memory. It does no composition and no color
// conversion: the pixel buffer handed to WriteRect must already be in the
// panel's wire format, e.g. big-endian RGB565 for 16 bits per pixel.
//
// # Address window
//
// Every rectangle write programs a column range, a page range and then starts
// a memory write. The last ranges sent are remembered so that repeated
// rectangles of the same geometry, like full frame redraws, only cost the
// WRITE_MEMORY_START byte. The remembered state is cleared by Init and by
// ResetWindow; call the latter if the panel is reset behind the driver's back.
//
// # Asynchronous transfers
//
// When Opts.DMA is set and a back buffer is used (Double or Triple
// buffering), transfers run on a dedicated goroutine in submission order.
// WriteRectAsync returns a Transfer that must be waited on before the pixel
// buffer is reused.
//
// A Dev serializes its own calls. Sharing the SPI port or the D/C line with
// another driver requires external coordination.
//
// # Datasheets
//
// https://www.mipi.org/specifications/display-command-set
//
// ILI9341: https://cdn-shop.adafruit.com/datasheets/ILI9341.pdf
//
// ST7789V: https://www.newhavendisplay.com/appnotes/datasheets/LCDs/ST7789V.pdf
package mipidisplay
