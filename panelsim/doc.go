// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package panelsim emulates a MIPI DCS display controller wired over 4-wire
// SPI.
//
// A Panel is at the same time the spi.Port, the spi.Conn and the owner of the
// D/C and reset lines, so it can be handed to a driver in place of the real
// hardware. It decodes the command stream into its own graphics memory,
// which can be inspected with At and Snapshot, dumped to a terminal with
// Render or watched in a browser through ServeHTTP.
//
// The primary use case is the development of display outputs on a host
// machine, and protocol level tests of drivers.
package panelsim
