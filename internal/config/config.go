// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package config holds the YAML configuration of the mipidisplay command.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GermanBionicSystems/mipidisplay"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
)

// Config describes the wiring and the panel.
type Config struct {
	// SPI is the SPI port name as known to spireg. Empty selects the first
	// port.
	SPI string `yaml:"spi"`
	// DC is the data/command GPIO name as known to gpioreg.
	DC string `yaml:"dc"`
	// Reset is the reset GPIO name. Empty when the reset line is not wired.
	Reset string `yaml:"reset"`
	// Frequency is the SPI clock, like "40MHz".
	Frequency string `yaml:"frequency"`

	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	OffsetX int `yaml:"offset_x"`
	OffsetY int `yaml:"offset_y"`
	// Depth is 16, 18 or 24 bits per pixel.
	Depth int `yaml:"depth"`
	// AddressMode is the MADCTL value, see mipidcs.AddressMode*.
	AddressMode int  `yaml:"address_mode"`
	Invert      bool `yaml:"invert"`

	// Buffering is "single", "double" or "triple".
	Buffering string `yaml:"buffering"`
	DMA       bool   `yaml:"dma"`

	// Listen is the address of the simulator image stream. Empty disables it.
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the configuration of the 320x240 K210 board LCD.
func DefaultConfig() *Config {
	return &Config{
		DC:          "GPIO25",
		Reset:       "GPIO27",
		Frequency:   mipidisplay.DefaultOpts.Frequency.String(),
		Width:       mipidisplay.DefaultOpts.Width,
		Height:      mipidisplay.DefaultOpts.Height,
		Depth:       mipidisplay.DefaultOpts.Depth,
		AddressMode: int(mipidisplay.DefaultOpts.AddressMode),
		Buffering:   mipidisplay.DefaultOpts.Buffering.String(),
	}
}

// Normalize fills zero values with the defaults, so partial files still
// work.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.DC == "" {
		c.DC = d.DC
	}
	if c.Frequency == "" {
		c.Frequency = d.Frequency
	}
	if c.Width == 0 && c.Height == 0 {
		c.Width, c.Height = d.Width, d.Height
	}
	if c.Depth == 0 {
		c.Depth = d.Depth
	}
	if c.Buffering == "" {
		c.Buffering = d.Buffering
	}
}

// Opts converts the configuration to driver options.
func (c *Config) Opts() (*mipidisplay.Opts, error) {
	o := &mipidisplay.Opts{
		Width:   c.Width,
		Height:  c.Height,
		OffsetX: c.OffsetX,
		OffsetY: c.OffsetY,
		Depth:   c.Depth,
		Invert:  c.Invert,
		DMA:     c.DMA,
	}
	if c.AddressMode < 0 || c.AddressMode > 0xFF {
		return nil, fmt.Errorf("config: invalid address_mode 0x%X", c.AddressMode)
	}
	o.AddressMode = byte(c.AddressMode)
	if err := o.Frequency.Set(c.Frequency); err != nil {
		return nil, fmt.Errorf("config: invalid frequency: %w", err)
	}
	if o.Frequency < physic.KiloHertz {
		return nil, fmt.Errorf("config: frequency %s is too low", o.Frequency)
	}
	if err := o.Buffering.Set(c.Buffering); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return o, nil
}

// Load reads the configuration at path.
//
// On first run the file does not exist: the default configuration is
// written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			return cfg, Save(path, cfg)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically, through a temporary file in the same
// directory.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".mipidisplay-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
