package pixgrid

import (
	"fmt"
	"math"
)

// DefaultMaxPixels bounds a single grid when no budget is configured.
// The decoder allocates from the header alone, so this caps what a few
// header bytes can make it reserve: 4096x4096 pixels, 48 MiB.
const DefaultMaxPixels = 1 << 24

// DefaultAllocator is used when a nil Allocator is passed.
var DefaultAllocator Allocator = HeapAllocator{}

// Allocator hands out pixel buffers and takes them back.
type Allocator interface {
	// Allocate returns a zeroed height x width grid, or ErrAllocation.
	Allocate(height, width int) (*Grid, error)
	// Free releases g's pixel buffer. Grids it did not allocate, or that
	// are already released, are left untouched.
	Free(g *Grid)
}

// HeapAllocator allocates on the Go heap within a pixel budget. Requests
// larger than MaxPixels fail with ErrAllocation instead of exhausting
// memory; MaxPixels <= 0 means DefaultMaxPixels.
type HeapAllocator struct {
	MaxPixels int
}

func (h HeapAllocator) budget() int {
	if h.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return h.MaxPixels
}

// Allocate implements Allocator.
func (h HeapAllocator) Allocate(height, width int) (*Grid, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidArgument, height, width)
	}
	if height > math.MaxInt/width {
		return nil, fmt.Errorf("%w: %dx%d overflows", ErrAllocation, height, width)
	}
	n := height * width
	if n > h.budget() {
		return nil, fmt.Errorf("%w: %dx%d exceeds budget of %d pixels", ErrAllocation, height, width, h.budget())
	}
	return &Grid{
		Height: height,
		Width:  width,
		Pix:    make([]Pixel, n),
		alloc:  h,
	}, nil
}

// Free implements Allocator.
func (HeapAllocator) Free(g *Grid) {
	if g != nil {
		g.Pix = nil
	}
}

// CountingAllocator wraps another allocator and records how grids are
// allocated and released. FailAt arms the n-th Allocate call (1-based) to
// fail with ErrAllocation. It is not safe for concurrent use.
type CountingAllocator struct {
	Inner  Allocator
	FailAt int

	Allocs         int
	Releases       int
	DoubleReleases int
	Failures       int
}

// Allocate implements Allocator.
func (c *CountingAllocator) Allocate(height, width int) (*Grid, error) {
	attempt := c.Allocs + c.Failures + 1
	if c.FailAt > 0 && attempt == c.FailAt {
		c.Failures++
		return nil, fmt.Errorf("%w: injected failure on allocation %d", ErrAllocation, attempt)
	}

	inner := c.Inner
	if inner == nil {
		inner = DefaultAllocator
	}
	g, err := inner.Allocate(height, width)
	if err != nil {
		c.Failures++
		return nil, err
	}
	c.Allocs++
	g.alloc = c
	return g, nil
}

// Free implements Allocator. A second release of the same grid is counted
// in DoubleReleases and otherwise ignored.
func (c *CountingAllocator) Free(g *Grid) {
	if g == nil {
		return
	}
	if g.Pix == nil {
		c.DoubleReleases++
		return
	}
	c.Releases++
	g.Pix = nil
}

// Live returns the number of grids allocated and not yet released.
func (c *CountingAllocator) Live() int {
	return c.Allocs - c.Releases
}
