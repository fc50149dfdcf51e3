// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mipidcs

import "fmt"

// Command is a single DCS opcode. It is always sent as one byte with the D/C
// line low; its parameters, if any, follow with the D/C line high.
type Command byte

// DCS commands.
const (
	Nop                  Command = 0x00
	SoftReset            Command = 0x01
	GetCompressionMode   Command = 0x03
	GetDisplayID         Command = 0x04
	GetErrorCountOnDSI   Command = 0x05
	GetRedChannel        Command = 0x06
	GetGreenChannel      Command = 0x07
	GetBlueChannel       Command = 0x08
	GetDisplayStatus     Command = 0x09
	GetPowerMode         Command = 0x0A
	GetAddressMode       Command = 0x0B
	GetPixelFormat       Command = 0x0C
	GetDisplayMode       Command = 0x0D
	GetSignalMode        Command = 0x0E
	GetDiagnosticResult  Command = 0x0F
	EnterSleepMode       Command = 0x10
	ExitSleepMode        Command = 0x11
	EnterPartialMode     Command = 0x12
	EnterNormalMode      Command = 0x13
	GetImageChecksumRGB  Command = 0x14
	GetImageChecksumCT   Command = 0x15
	ExitInvertMode       Command = 0x20
	EnterInvertMode      Command = 0x21
	SetGammaCurve        Command = 0x26
	SetDisplayOff        Command = 0x28
	SetDisplayOn         Command = 0x29
	SetColumnAddress     Command = 0x2A
	SetPageAddress       Command = 0x2B
	WriteMemoryStart     Command = 0x2C
	WriteLUT             Command = 0x2D
	ReadMemoryStart      Command = 0x2E
	SetPartialRows       Command = 0x30
	SetPartialColumns    Command = 0x31
	SetScrollArea        Command = 0x33
	SetTearOff           Command = 0x34
	SetTearOn            Command = 0x35
	SetAddressMode       Command = 0x36
	SetScrollStart       Command = 0x37
	ExitIdleMode         Command = 0x38
	EnterIdleMode        Command = 0x39
	SetPixelFormat       Command = 0x3A
	WriteMemoryContinue  Command = 0x3C
	Set3DControl         Command = 0x3D
	ReadMemoryContinue   Command = 0x3E
	Get3DControl         Command = 0x3F
	SetVsyncTiming       Command = 0x40
	SetTearScanline      Command = 0x44
	GetScanline          Command = 0x45
	SetDisplayBrightness Command = 0x51
	GetDisplayBrightness Command = 0x52
	WriteControlDisplay  Command = 0x53
	GetControlDisplay    Command = 0x54
	WritePowerSave       Command = 0x55
	GetPowerSave         Command = 0x56
	SetCABCMinBrightness Command = 0x5E
	GetCABCMinBrightness Command = 0x5F
	ReadDDBStart         Command = 0xA1
	ReadPPSStart         Command = 0xA2
	ReadDDBContinue      Command = 0xA8
	ReadPPSContinue      Command = 0xA9
)

var names = map[Command]string{
	Nop:                  "NOP",
	SoftReset:            "SOFT_RESET",
	GetCompressionMode:   "GET_COMPRESSION_MODE",
	GetDisplayID:         "GET_DISPLAY_ID",
	GetErrorCountOnDSI:   "GET_ERROR_COUNT_ON_DSI",
	GetRedChannel:        "GET_RED_CHANNEL",
	GetGreenChannel:      "GET_GREEN_CHANNEL",
	GetBlueChannel:       "GET_BLUE_CHANNEL",
	GetDisplayStatus:     "GET_DISPLAY_STATUS",
	GetPowerMode:         "GET_POWER_MODE",
	GetAddressMode:       "GET_ADDRESS_MODE",
	GetPixelFormat:       "GET_PIXEL_FORMAT",
	GetDisplayMode:       "GET_DISPLAY_MODE",
	GetSignalMode:        "GET_SIGNAL_MODE",
	GetDiagnosticResult:  "GET_DIAGNOSTIC_RESULT",
	EnterSleepMode:       "ENTER_SLEEP_MODE",
	ExitSleepMode:        "EXIT_SLEEP_MODE",
	EnterPartialMode:     "ENTER_PARTIAL_MODE",
	EnterNormalMode:      "ENTER_NORMAL_MODE",
	GetImageChecksumRGB:  "GET_IMAGE_CHECKSUM_RGB",
	GetImageChecksumCT:   "GET_IMAGE_CHECKSUM_CT",
	ExitInvertMode:       "EXIT_INVERT_MODE",
	EnterInvertMode:      "ENTER_INVERT_MODE",
	SetGammaCurve:        "SET_GAMMA_CURVE",
	SetDisplayOff:        "SET_DISPLAY_OFF",
	SetDisplayOn:         "SET_DISPLAY_ON",
	SetColumnAddress:     "SET_COLUMN_ADDRESS",
	SetPageAddress:       "SET_PAGE_ADDRESS",
	WriteMemoryStart:     "WRITE_MEMORY_START",
	WriteLUT:             "WRITE_LUT",
	ReadMemoryStart:      "READ_MEMORY_START",
	SetPartialRows:       "SET_PARTIAL_ROWS",
	SetPartialColumns:    "SET_PARTIAL_COLUMNS",
	SetScrollArea:        "SET_SCROLL_AREA",
	SetTearOff:           "SET_TEAR_OFF",
	SetTearOn:            "SET_TEAR_ON",
	SetAddressMode:       "SET_ADDRESS_MODE",
	SetScrollStart:       "SET_SCROLL_START",
	ExitIdleMode:         "EXIT_IDLE_MODE",
	EnterIdleMode:        "ENTER_IDLE_MODE",
	SetPixelFormat:       "SET_PIXEL_FORMAT",
	WriteMemoryContinue:  "WRITE_MEMORY_CONTINUE",
	Set3DControl:         "SET_3D_CONTROL",
	ReadMemoryContinue:   "READ_MEMORY_CONTINUE",
	Get3DControl:         "GET_3D_CONTROL",
	SetVsyncTiming:       "SET_VSYNC_TIMING",
	SetTearScanline:      "SET_TEAR_SCANLINE",
	GetScanline:          "GET_SCANLINE",
	SetDisplayBrightness: "SET_DISPLAY_BRIGHTNESS",
	GetDisplayBrightness: "GET_DISPLAY_BRIGHTNESS",
	WriteControlDisplay:  "WRITE_CONTROL_DISPLAY",
	GetControlDisplay:    "GET_CONTROL_DISPLAY",
	WritePowerSave:       "WRITE_POWER_SAVE",
	GetPowerSave:         "GET_POWER_SAVE",
	SetCABCMinBrightness: "SET_CABC_MIN_BRIGHTNESS",
	GetCABCMinBrightness: "GET_CABC_MIN_BRIGHTNESS",
	ReadDDBStart:         "READ_DDB_START",
	ReadPPSStart:         "READ_PPS_START",
	ReadDDBContinue:      "READ_DDB_CONTINUE",
	ReadPPSContinue:      "READ_PPS_CONTINUE",
}

// String returns the DCS mnemonic, or the hex opcode for commands outside
// the standard set.
func (c Command) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return fmt.Sprintf("0x%02X", byte(c))
}

// IsRead reports whether the command belongs to the read vocabulary: the
// panel answers it with status bytes instead of accepting parameters.
func IsRead(c Command) bool {
	switch c {
	case GetCompressionMode,
		GetDisplayID,
		GetRedChannel,
		GetGreenChannel,
		GetBlueChannel,
		GetDisplayStatus,
		GetPowerMode,
		GetAddressMode,
		GetPixelFormat,
		GetDisplayMode,
		GetSignalMode,
		GetDiagnosticResult,
		GetScanline,
		GetDisplayBrightness,
		GetControlDisplay,
		GetPowerSave,
		ReadDDBStart,
		ReadDDBContinue:
		return true
	}
	return false
}
