// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsim

import (
	"bytes"
	"image/color"
	"io"
)

// Render draws what the panel shows on a terminal using ANSI 256 colors.
//
// Each character cell covers scale x scale pixels, sampled at its top left
// pixel. A scale below 1 is handled as 1. On Windows, wrap w with
// colorable.NewColorable.
func (p *Panel) Render(w io.Writer, scale int) error {
	if scale < 1 {
		scale = 1
	}
	img := p.Snapshot()
	r := img.Bounds()

	// Build the whole frame first, to write it in one go.
	var buf bytes.Buffer
	_, _ = buf.WriteString("\033[0m")
	for y := r.Min.Y; y < r.Max.Y; y += scale {
		for x := r.Min.X; x < r.Max.X; x += scale {
			c := img.RGBAAt(x, y)
			_, _ = io.WriteString(&buf, p.palette.Block(color.NRGBA{c.R, c.G, c.B, 255}))
		}
		_, _ = buf.WriteString("\033[0m\n")
	}
	_, err := buf.WriteTo(w)
	return err
}
