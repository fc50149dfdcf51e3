// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mipidisplay brings up a MIPI DCS panel and shows a test card on it.
//
// With -sim, the panel is emulated: the frame is drawn on the terminal and
// can be watched in a browser with -http.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GermanBionicSystems/mipidisplay"
	"github.com/GermanBionicSystems/mipidisplay/internal/config"
	"github.com/GermanBionicSystems/mipidisplay/internal/testcard"
	"github.com/GermanBionicSystems/mipidisplay/panelsim"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// panel is the hardware or the emulated panel.
type panel struct {
	port spi.PortCloser
	dc   gpio.PinOut
	rst  gpio.PinOut
	sim  *panelsim.Panel
}

func openHardware(cfg *config.Config) (*panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	dc := gpioreg.ByName(cfg.DC)
	if dc == nil {
		return nil, fmt.Errorf("unknown D/C pin %q", cfg.DC)
	}
	var rst gpio.PinOut
	if cfg.Reset != "" {
		p := gpioreg.ByName(cfg.Reset)
		if p == nil {
			return nil, fmt.Errorf("unknown reset pin %q", cfg.Reset)
		}
		rst = p
	}
	port, err := spireg.Open(cfg.SPI)
	if err != nil {
		return nil, err
	}
	return &panel{port: port, dc: dc, rst: rst}, nil
}

func openSim(cfg *config.Config) *panel {
	p := panelsim.New(&panelsim.Opts{
		Width:  cfg.Width + cfg.OffsetX,
		Height: cfg.Height + cfg.OffsetY,
	})
	return &panel{port: p, dc: p.DC(), rst: p.Reset(), sim: p}
}

// show draws the test card and sends it.
func show(dev *mipidisplay.Dev, depth int, caption string) error {
	r := dev.Bounds()
	pixels, err := testcard.Pack(testcard.Draw(r.Dx(), r.Dy(), caption), depth)
	if err != nil {
		return err
	}
	if _, err := dev.WriteRect(0, 0, r.Dx(), r.Dy(), pixels); err != nil {
		return err
	}
	return dev.Flush()
}

// render dumps the emulated panel on the terminal, scaled down to fit in 80
// columns.
func render(p *panelsim.Panel, w io.Writer, width int) error {
	return p.Render(w, (width+79)/80)
}

func mainImpl() error {
	configPath := flag.String("config", "mipidisplay.yaml", "path to the YAML configuration, created on first run")
	sim := flag.Bool("sim", false, "emulate the panel instead of using the hardware")
	listen := flag.String("http", "", "with -sim, serve the panel as an image stream on this address")
	once := flag.Bool("once", false, "show a single frame and exit")
	verbose := flag.Bool("v", false, "verbose mode")
	flag.Parse()
	if !*verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() != 0 {
		return errors.New("unexpected argument, try -help")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	opts, err := cfg.Opts()
	if err != nil {
		return err
	}
	opts.Logf = log.Printf

	var p *panel
	if *sim {
		p = openSim(cfg)
	} else if p, err = openHardware(cfg); err != nil {
		return err
	}
	defer p.port.Close()

	dev, err := mipidisplay.New(p.port, p.dc, p.rst, opts)
	if err != nil {
		return err
	}
	defer dev.Close()
	log.Printf("%s", dev)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if p.sim != nil && cfg.Listen != "" {
		srv := &http.Server{Addr: cfg.Listen, Handler: p.sim}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http: %v", err)
				stop()
			}
		}()
		defer srv.Close()
		fmt.Printf("Streaming on http://%s/\n", cfg.Listen)
	}

	if err := dev.Init(); err != nil {
		return err
	}

	var out io.Writer
	if p.sim != nil && isatty.IsTerminal(os.Stdout.Fd()) {
		out = colorable.NewColorableStdout()
	}
	for {
		start := time.Now()
		if err := show(dev, opts.Depth, start.Format("15:04:05")); err != nil {
			return err
		}
		log.Printf("Frame sent in %s.", time.Since(start))
		if out != nil {
			// Home the cursor to redraw in place.
			if _, err := io.WriteString(out, "\033[H"); err != nil {
				return err
			}
			if err := render(p.sim, out, cfg.Width+cfg.OffsetX); err != nil {
				return err
			}
		}
		if *once {
			break
		}
		select {
		case <-ctx.Done():
			return dev.Halt()
		case <-time.After(time.Second - time.Since(start)):
		}
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "mipidisplay: %s.\n", err)
		os.Exit(1)
	}
}
