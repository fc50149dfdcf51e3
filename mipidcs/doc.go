// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mipidcs defines the MIPI Display Command Set (DCS) vocabulary shared
// by most TFT LCD controllers (ILI9341, ST7789, GC9A01, ...).
//
// Only the standardized part of the command set is listed here. Controller
// specific extensions (gamma tables, power control, frame rate) live in the
// manufacturer command space above 0xB0 and are not covered.
//
// # Datasheets
//
// MIPI Alliance Specification for Display Command Set, version 1.02.00:
//
// https://www.mipi.org/specifications/display-command-set
package mipidcs
