// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"encoding/binary"
	"fmt"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
)

// Window is the address window last programmed into the panel, in panel
// coordinates (offsets applied). Ranges are inclusive.
//
// An axis that is not set is always reprogrammed by the next write.
type Window struct {
	X1, X2     uint16
	Y1, Y2     uint16
	ColumnsSet bool
	PagesSet   bool
}

// Reset forgets both ranges.
func (w *Window) Reset() {
	*w = Window{}
}

func (w Window) String() string {
	cols, pages := "unset", "unset"
	if w.ColumnsSet {
		cols = fmt.Sprintf("%d-%d", w.X1, w.X2)
	}
	if w.PagesSet {
		pages = fmt.Sprintf("%d-%d", w.Y1, w.Y2)
	}
	return fmt.Sprintf("Window{columns: %s, pages: %s}", cols, pages)
}

// setAddress points the panel memory writes at the inclusive rectangle
// (x1, y1)-(x2, y2) given in logical coordinates.
//
// The column and page ranges are only sent when they differ from w. The
// memory write is always started. Callers must have checked that the
// translated coordinates fit in 16 bits.
func setAddress(ctrl controller, w *Window, x1, y1, x2, y2, offX, offY int) {
	px1, px2 := uint16(x1+offX), uint16(x2+offX)
	py1, py2 := uint16(y1+offY), uint16(y2+offY)

	if !w.ColumnsSet || w.X1 != px1 || w.X2 != px2 {
		ctrl.sendCommand(mipidcs.SetColumnAddress)
		ctrl.sendData(addressRange(px1, px2))
		if ctrl.failed() {
			w.ColumnsSet = false
		} else {
			w.X1, w.X2, w.ColumnsSet = px1, px2, true
		}
	}

	if !w.PagesSet || w.Y1 != py1 || w.Y2 != py2 {
		ctrl.sendCommand(mipidcs.SetPageAddress)
		ctrl.sendData(addressRange(py1, py2))
		if ctrl.failed() {
			w.PagesSet = false
		} else {
			w.Y1, w.Y2, w.PagesSet = py1, py2, true
		}
	}

	ctrl.sendCommand(mipidcs.WriteMemoryStart)
}

// addressRange encodes a SET_COLUMN_ADDRESS or SET_PAGE_ADDRESS parameter:
// start then end, both big endian.
func addressRange(start, end uint16) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:], start)
	binary.BigEndian.PutUint16(b[2:], end)
	return b
}
