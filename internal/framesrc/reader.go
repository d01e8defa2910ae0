// Package framesrc reads raw BGR24 frame streams: the live ffmpeg pipe on
// stdin, and recorded .bgr dumps (optionally zstd-compressed) for offline
// learn sessions.
package framesrc

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/ttptv/vision/internal/pix"
)

// Reader yields fixed-size BGR24 frames from a byte stream.
type Reader struct {
	r      io.Reader
	closer io.Closer
	dec    *zstd.Decoder
	w, h   int
	buf    []byte
	frames int
}

// NewReader wraps an already-open stream (typically os.Stdin).
func NewReader(r io.Reader, width, height int) (*Reader, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d", width, height)
	}
	return &Reader{
		r: r, w: width, h: height,
		buf: make([]byte, width*height*3),
	}, nil
}

// Open opens a frame source path. "-" means stdin; a .zst suffix is
// decompressed transparently (recorded dumps from earlier sessions).
func Open(path string, width, height int) (*Reader, error) {
	if path == "" || path == "-" {
		return NewReader(os.Stdin, width, height)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	r, err := NewReader(f, width, height)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd frame source: %w", err)
		}
		r.dec = dec
		r.r = dec
	}
	return r, nil
}

// Next reads one frame. Returns (nil, io.EOF) at clean end of stream; a
// short read is also treated as end of input (the producer was cut off
// mid-frame).
func (r *Reader) Next() (*pix.Image, error) {
	n, err := io.ReadFull(r.r, r.buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF || n < len(r.buf) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", r.frames+1, err)
	}
	r.frames++
	frame := pix.New(r.w, r.h)
	copy(frame.Pix, r.buf)
	return frame, nil
}

// FrameCount returns the number of frames read so far.
func (r *Reader) FrameCount() int { return r.frames }

// Close releases the underlying file and decoder, if any.
func (r *Reader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
