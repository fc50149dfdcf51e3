// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package testcard draws a test pattern and converts images to the byte
// layout of MIPI DCS panels.
package testcard

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// Bars are the colors of the vertical bars, left to right.
var Bars = []color.RGBA{
	{0xFF, 0xFF, 0xFF, 0xFF},
	{0xFF, 0xFF, 0x00, 0xFF},
	{0x00, 0xFF, 0xFF, 0xFF},
	{0x00, 0xFF, 0x00, 0xFF},
	{0xFF, 0x00, 0xFF, 0xFF},
	{0xFF, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0xFF, 0xFF},
	{0x00, 0x00, 0x00, 0xFF},
}

// Draw renders color bars on the top two thirds, a gray ramp below them and
// caption centered on the ramp.
func Draw(w, h int, caption string) image.Image {
	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	barH := float64(h) * 2 / 3
	for i, c := range Bars {
		x0 := w * i / len(Bars)
		x1 := w * (i + 1) / len(Bars)
		dc.SetColor(c)
		dc.DrawRectangle(float64(x0), 0, float64(x1-x0), barH)
		dc.Fill()
	}
	for x := 0; x < w; x++ {
		v := float64(x) / float64(w)
		dc.SetRGB(v, v, v)
		dc.DrawRectangle(float64(x), barH, 1, float64(h)-barH)
		dc.Fill()
	}

	if caption != "" {
		dc.SetFontFace(face(h))
		tw, th := dc.MeasureString(caption)
		cx, cy := float64(w)/2, barH+(float64(h)-barH)/2
		dc.SetRGB(0, 0, 0)
		dc.DrawRectangle(cx-tw/2-4, cy-th/2-4, tw+8, th+8)
		dc.Fill()
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(caption, cx, cy, 0.5, 0.5)
	}
	return dc.Image()
}

// face returns the Go font sized for the panel, or a bitmap font on tiny
// panels where antialiased text is unreadable.
func face(h int) font.Face {
	size := float64(h) / 12
	if size < 10 {
		return basicfont.Face7x13
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// Pack converts img to the wire layout for the given depth: big endian
// RGB565 for 16, one byte per channel for 18 and 24. 18 bits pixels keep the
// 6 most significant bits of each channel.
func Pack(img image.Image, depth int) ([]byte, error) {
	r := img.Bounds()
	var out []byte
	switch depth {
	case 16:
		out = make([]byte, 0, 2*r.Dx()*r.Dy())
	case 18, 24:
		out = make([]byte, 0, 3*r.Dx()*r.Dy())
	default:
		return nil, fmt.Errorf("testcard: unsupported depth %d", depth)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			switch depth {
			case 16:
				v := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
				out = append(out, byte(v>>8), byte(v))
			case 18:
				out = append(out, c.R&0xFC, c.G&0xFC, c.B&0xFC)
			default:
				out = append(out, c.R, c.G, c.B)
			}
		}
	}
	return out, nil
}
