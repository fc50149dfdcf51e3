// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsim

import (
	"fmt"
	"strings"
)

// ImageFormat is the encoding of the frames sent by ServeHTTP.
type ImageFormat int

const (
	PNG ImageFormat = iota
	JPEG

	// DefaultFormat is used when neither Opts.Format nor the "format" URL
	// parameter selects one.
	DefaultFormat = PNG
)

func (f ImageFormat) String() string {
	switch f {
	case PNG:
		return "PNG"
	case JPEG:
		return "JPEG"
	default:
		return fmt.Sprint(int(f))
	}
}

// Set implements flag.Value.
func (f *ImageFormat) Set(s string) error {
	v, err := ParseImageFormat(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (f ImageFormat) mimeType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// ParseImageFormat returns the ImageFormat for a format abbreviation, case
// insensitive.
func ParseImageFormat(value string) (ImageFormat, error) {
	switch strings.ToLower(value) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	}
	return DefaultFormat, fmt.Errorf("panelsim: unrecognized image format %q", value)
}
