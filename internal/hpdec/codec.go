// HPDEC is a plain-text container for RGB pixel grids. A file is the magic
// token, the height and width, then one "r g b" record per pixel in
// row-major order. Tokens are whitespace separated and line breaks are not
// significant on input; the encoder always writes one record per line.

package hpdec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/svanichkin/hpdec/internal/fsutil"
	"github.com/svanichkin/hpdec/internal/pixgrid"
)

// Magic is the first token of every HPDEC stream.
const Magic = "HPDEC"

// Decoder parses HPDEC streams into grids allocated through Alloc.
type Decoder struct {
	// Alloc provides pixel buffers; nil means pixgrid.DefaultAllocator.
	Alloc pixgrid.Allocator
}

// NewDecoder returns a Decoder that allocates through alloc.
func NewDecoder(alloc pixgrid.Allocator) *Decoder {
	return &Decoder{Alloc: alloc}
}

// DecodeFrom reads exactly one grid from r. Content after the last pixel
// record is not consumed by the caller's contract and is ignored. On any
// error the partially decoded grid is released and nil is returned.
func (d *Decoder) DecodeFrom(r io.Reader) (*pixgrid.Grid, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", pixgrid.ErrInvalidArgument)
	}

	t := newTokenReader(r)
	height, width, err := readHeader(t)
	if err != nil {
		return nil, err
	}

	g, err := pixgrid.New(d.Alloc, height, width)
	if err != nil {
		return nil, err
	}

	for i := range g.Pix {
		p, err := readPixel(t)
		if err != nil {
			g.Release()
			if fe, ok := err.(*FormatError); ok {
				fe.Index = i
			}
			return nil, err
		}
		g.Pix[i] = p
	}
	return g, nil
}

// DecodeFile opens path on fsys and decodes it. The file is closed on
// every path.
func (d *Decoder) DecodeFile(fsys fsutil.FileSystem, path string) (*pixgrid.Grid, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	g, err := d.DecodeFrom(f)
	if ioErr, ok := err.(*IOError); ok && ioErr.Path == "" {
		ioErr.Path = path
	}
	return g, err
}

func readPixel(t *tokenReader) (pixgrid.Pixel, error) {
	var ch [3]uint8
	for c := range ch {
		v, err := t.int()
		if err != nil {
			return pixgrid.Pixel{}, asFormat(CausePixel, err)
		}
		if v < 0 || v > 255 {
			return pixgrid.Pixel{}, formatErr(CausePixel, fmt.Errorf("channel value %d out of range [0,255]", v))
		}
		ch[c] = uint8(v)
	}
	return pixgrid.Pixel{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// Encoder writes grids in HPDEC form. It keeps a line buffer between
// calls; an Encoder is not safe for concurrent use.
type Encoder struct {
	line []byte
}

// NewEncoder returns an Encoder.
func NewEncoder() *Encoder {
	return &Encoder{line: make([]byte, 0, len("255 255 255\n"))}
}

// EncodeTo writes g to w. Every write or flush failure is returned as an
// *IOError; bytes already flushed stay in w.
func (e *Encoder) EncodeTo(w io.Writer, g *pixgrid.Grid) error {
	if err := g.Valid(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if w == nil {
		return fmt.Errorf("%w: nil writer", pixgrid.ErrInvalidArgument)
	}

	bw := bufio.NewWriter(w)
	if err := writeHeader(bw, g.Height, g.Width); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	for _, p := range g.Pix {
		e.line = appendPixel(e.line[:0], p)
		if _, err := bw.Write(e.line); err != nil {
			return &IOError{Op: "write", Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// EncodeFile creates path on fsys and writes g to it. The file is closed
// on every path; a failed close after a successful write is an *IOError.
// A failure part way through may leave a truncated file behind.
func (e *Encoder) EncodeFile(fsys fsutil.FileSystem, path string, g *pixgrid.Grid) (err error) {
	if verr := g.Valid(); verr != nil {
		return fmt.Errorf("encode: %w", verr)
	}
	if path == "" {
		return fmt.Errorf("%w: empty output path", pixgrid.ErrInvalidArgument)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close", Path: path, Err: cerr}
		}
	}()

	if err := e.EncodeTo(f, g); err != nil {
		if ioErr, ok := err.(*IOError); ok {
			ioErr.Path = path
		}
		return err
	}
	return nil
}

func appendPixel(dst []byte, p pixgrid.Pixel) []byte {
	dst = strconv.AppendUint(dst, uint64(p.R), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(p.G), 10)
	dst = append(dst, ' ')
	dst = strconv.AppendUint(dst, uint64(p.B), 10)
	return append(dst, '\n')
}

// Decode reads one grid from r using the default allocator.
func Decode(r io.Reader) (*pixgrid.Grid, error) {
	return NewDecoder(nil).DecodeFrom(r)
}

// Encode writes g to w.
func Encode(w io.Writer, g *pixgrid.Grid) error {
	return NewEncoder().EncodeTo(w, g)
}

// Marshal returns the HPDEC encoding of g.
func Marshal(g *pixgrid.Grid) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a grid from data.
func Unmarshal(data []byte) (*pixgrid.Grid, error) {
	return Decode(bytes.NewReader(data))
}
