// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidisplay

import (
	"time"

	"github.com/GermanBionicSystems/mipidisplay/mipidcs"
)

// Delays required by the panels during bring-up.
const (
	settleDelay    = 100 * time.Millisecond
	resetDelay     = 100 * time.Millisecond
	softResetDelay = 200 * time.Millisecond
	sleepOutDelay  = 200 * time.Millisecond
	displayOnDelay = 200 * time.Millisecond
)

type controller interface {
	sendCommand(mipidcs.Command)
	sendData([]byte)
	delay(time.Duration)
	failed() bool
}

// initDisplay sends the minimal bring-up sequence, from soft reset to the
// full screen viewport. w must have been reset.
func initDisplay(ctrl controller, w *Window, opts *Opts) {
	ctrl.sendCommand(mipidcs.SoftReset)
	ctrl.delay(softResetDelay)

	ctrl.sendCommand(mipidcs.SetAddressMode)
	ctrl.sendData([]byte{opts.AddressMode})

	ctrl.sendCommand(mipidcs.SetPixelFormat)
	ctrl.sendData([]byte{opts.PixelFormat})

	if opts.Invert {
		ctrl.sendCommand(mipidcs.EnterInvertMode)
	} else {
		ctrl.sendCommand(mipidcs.ExitInvertMode)
	}

	ctrl.sendCommand(mipidcs.ExitSleepMode)
	ctrl.delay(sleepOutDelay)

	ctrl.sendCommand(mipidcs.SetDisplayOn)
	ctrl.delay(displayOnDelay)

	setAddress(ctrl, w, 0, 0, opts.Width-1, opts.Height-1, opts.OffsetX, opts.OffsetY)
}

// sendRaw sends a command followed by its parameters. Read commands are sent
// without parameters.
func sendRaw(ctrl controller, c mipidcs.Command, data []byte) {
	ctrl.sendCommand(c)
	if !mipidcs.IsRead(c) {
		ctrl.sendData(data)
	}
}
