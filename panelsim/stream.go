// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package panelsim

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
)

type client struct {
	refresh   chan struct{}
	terminate chan struct{}
}

// changedLocked drops the cached frames and wakes up the stream clients.
func (p *Panel) changedLocked() {
	for f, buf := range p.snapshot {
		if buf != nil {
			//lint:ignore SA6002 buf is []byte and thus pointer-like
			bufferPool.Put(buf)
		}
		delete(p.snapshot, f)
	}
	for c := range p.clients {
		select {
		case c.refresh <- struct{}{}:
		default:
		}
	}
}

func (p *Panel) terminateClientsLocked() {
	for c := range p.clients {
		select {
		case c.terminate <- struct{}{}:
		default:
		}
	}
}

func (p *Panel) formatFromQuery(values url.Values) (ImageFormat, error) {
	if value := values.Get("format"); value != "" {
		return ParseImageFormat(value)
	}
	return p.opts.Format, nil
}

// grabFrame returns the current frame encoded in format. The caller owns the
// returned buffer.
func (p *Panel) grabFrame(format ImageFormat) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	encoded, ok := p.snapshot[format]
	if !ok {
		var err error
		if encoded, err = encode(p.snapshotLocked(), format); err != nil {
			return nil, err
		}
		p.snapshot[format] = encoded
	}
	return append(bufferPool.Get().([]byte)[:0], encoded...), nil
}

// frameStream writes frames as parts of a multipart/x-mixed-replace body.
//
// Each part is followed by the next delimiter line right away, so a browser
// shows the frame without waiting for the next one. mime/multipart.Writer
// only writes a delimiter when the next part starts.
type frameStream struct {
	w        io.Writer
	boundary string
	// header is the part header up to the Content-Length value.
	header string
	buf    bytes.Buffer
}

func newFrameStream(w io.Writer, format ImageFormat) *frameStream {
	boundary := multipart.NewWriter(io.Discard).Boundary()
	s := &frameStream{
		w:        w,
		boundary: boundary,
		header: fmt.Sprintf("Content-Type: %s\r\nContent-Transfer-Encoding: binary\r\nContent-Length: ",
			mime.FormatMediaType(format.mimeType(), nil)),
	}
	fmt.Fprintf(&s.buf, "--%s\r\n", boundary)
	return s
}

func (s *frameStream) contentType() string {
	return mime.FormatMediaType("multipart/x-mixed-replace", map[string]string{"boundary": s.boundary})
}

// write sends one frame in a single write call.
func (s *frameStream) write(frame []byte) error {
	fmt.Fprintf(&s.buf, "%s%d\r\n\r\n", s.header, len(frame))
	s.buf.Write(frame)
	fmt.Fprintf(&s.buf, "\r\n--%s\r\n", s.boundary)
	_, err := s.buf.WriteTo(s.w)
	s.buf.Reset()
	return err
}

// ServeHTTP handles GET requests with a never ending multipart stream of
// images of what the panel shows. A new image is sent after every change.
//
// Opts.Format selects the default image format. Clients can request one
// with the "format" parameter ("?format=png", "?format=jpeg").
func (p *Panel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.Body.Close(); err != nil {
		log.Printf("panelsim: closing request body failed: %v", err)
	}
	if r.Method != http.MethodGet {
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}
	format, err := p.formatFromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := newFrameStream(w, format)
	w.Header().Set("Content-Type", s.contentType())
	flusher, _ := w.(http.Flusher)

	c := &client{
		refresh:   make(chan struct{}, 1),
		terminate: make(chan struct{}, 1),
	}
	p.mu.Lock()
	p.clients[c] = struct{}{}
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.clients, c)
		p.mu.Unlock()
	}()

	for {
		frame, err := p.grabFrame(format)
		if err != nil {
			log.Printf("panelsim: encoding %s frame: %v", format, err)
			return
		}
		err = s.write(frame)
		//lint:ignore SA6002 frame is []byte and thus pointer-like
		bufferPool.Put(frame)
		if err != nil {
			// The client went away.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}

		select {
		case <-c.refresh:
		case <-c.terminate:
			return
		case <-r.Context().Done():
			return
		}
	}
}
