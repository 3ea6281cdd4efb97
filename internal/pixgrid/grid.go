// Package pixgrid holds the in-memory pixel grid shared by the codec and the
// transforms: a contiguous row-major buffer of RGB pixels plus dimensions.
package pixgrid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a nil, released or malformed grid, or a
	// parameter out of its allowed range.
	ErrInvalidArgument = errors.New("pixgrid: invalid argument")
	// ErrAllocation reports that the pixel buffer could not be obtained.
	ErrAllocation = errors.New("pixgrid: allocation failed")
)

// Pixel is one RGB sample. The uint8 channels keep every value in [0,255].
type Pixel struct {
	R, G, B uint8
}

// Grid is a Height x Width image. Pix holds Height*Width pixels in row-major
// order; the pixel at (x, y) is Pix[y*Width+x]. A grid owns Pix exclusively.
type Grid struct {
	Height int
	Width  int
	Pix    []Pixel

	alloc Allocator
}

// New allocates a zeroed grid through alloc. A nil alloc uses the heap
// with the default pixel budget.
func New(alloc Allocator, height, width int) (*Grid, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidArgument, height, width)
	}
	if alloc == nil {
		alloc = DefaultAllocator
	}
	return alloc.Allocate(height, width)
}

// Copy returns a deep copy of src allocated through alloc. On failure no
// grid is returned.
func Copy(alloc Allocator, src *Grid) (*Grid, error) {
	if err := src.Valid(); err != nil {
		return nil, fmt.Errorf("copy: %w", err)
	}
	dst, err := New(alloc, src.Height, src.Width)
	if err != nil {
		return nil, err
	}
	copy(dst.Pix, src.Pix)
	return dst, nil
}

// Release frees the pixel buffer. Calling it on a nil or already released
// grid is a no-op.
func (g *Grid) Release() {
	if g == nil {
		return
	}
	if g.alloc != nil {
		g.alloc.Free(g)
		return
	}
	g.Pix = nil
}

// Released reports whether g is nil or has no pixel buffer.
func (g *Grid) Released() bool {
	return g == nil || g.Pix == nil
}

// Valid checks that g is live and that its buffer matches its dimensions.
// Height, Width and Pix are exported, so callers that build or edit a Grid
// by hand can break the invariant; consumers check it before use.
func (g *Grid) Valid() error {
	switch {
	case g.Released():
		return fmt.Errorf("%w: nil or released grid", ErrInvalidArgument)
	case g.Height <= 0 || g.Width <= 0:
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidArgument, g.Height, g.Width)
	case len(g.Pix)%g.Width != 0 || len(g.Pix)/g.Width != g.Height:
		return fmt.Errorf("%w: %d pixels for %dx%d", ErrInvalidArgument, len(g.Pix), g.Height, g.Width)
	}
	return nil
}

// Len returns the number of pixels.
func (g *Grid) Len() int {
	return g.Height * g.Width
}

// At returns the pixel at column x, row y.
func (g *Grid) At(x, y int) Pixel {
	return g.Pix[g.offset(x, y)]
}

// Set stores p at column x, row y.
func (g *Grid) Set(x, y int, p Pixel) {
	g.Pix[g.offset(x, y)] = p
}

func (g *Grid) offset(x, y int) int {
	if x < 0 || x >= g.Width || y < 0 || y >= g.Height {
		panic(fmt.Sprintf("pixgrid: (%d,%d) out of bounds %dx%d", x, y, g.Width, g.Height))
	}
	return y*g.Width + x
}

// Apply replaces every pixel with fn's result, walking rows top to bottom
// and each row left to right. It does nothing on a grid that is not Valid.
func (g *Grid) Apply(fn func(x, y int, p Pixel) Pixel) {
	if g.Valid() != nil {
		return
	}
	for y := range g.Height {
		row := g.Pix[y*g.Width : (y+1)*g.Width]
		for x := range row {
			row[x] = fn(x, y, row[x])
		}
	}
}

// Equal reports whether a and b have the same dimensions and pixels.
func Equal(a, b *Grid) bool {
	if a.Released() || b.Released() {
		return a.Released() && b.Released()
	}
	if a.Height != b.Height || a.Width != b.Width || len(a.Pix) != len(b.Pix) {
		return false
	}
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			return false
		}
	}
	return true
}
