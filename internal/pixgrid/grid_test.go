package pixgrid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestGrid(t testing.TB, alloc Allocator, h, w int) *Grid {
	t.Helper()
	g, err := New(alloc, h, w)
	require.NoError(t, err)
	g.Apply(func(x, y int, _ Pixel) Pixel {
		return Pixel{
			R: uint8((x * 17) ^ (y * 31)),
			G: uint8((x * 43) + (y * 13)),
			B: uint8((x * 7) ^ (y * 11)),
		}
	})
	return g
}

func TestNew_Dimensions(t *testing.T) {
	g, err := New(nil, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, g.Height)
	assert.Equal(t, 4, g.Width)
	assert.Len(t, g.Pix, 12)
	assert.Equal(t, 12, g.Len())

	for _, tc := range []struct {
		name string
		h, w int
	}{
		{"zero height", 0, 5},
		{"negative width", 5, -1},
		{"both zero", 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(nil, tc.h, tc.w)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestHeapAllocator_Budget(t *testing.T) {
	_, err := HeapAllocator{MaxPixels: 10}.Allocate(4, 3)
	assert.ErrorIs(t, err, ErrAllocation)

	g, err := HeapAllocator{MaxPixels: 12}.Allocate(4, 3)
	require.NoError(t, err)
	assert.Len(t, g.Pix, 12)

	_, err = HeapAllocator{}.Allocate(math.MaxInt/2, 3)
	assert.ErrorIs(t, err, ErrAllocation)

	g, err = HeapAllocator{}.Allocate(4096, 4096)
	require.NoError(t, err)
	assert.Len(t, g.Pix, DefaultMaxPixels)
	_, err = HeapAllocator{}.Allocate(4097, 4096)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestGrid_Valid(t *testing.T) {
	assert.NoError(t, makeTestGrid(t, nil, 2, 3).Valid())

	released := makeTestGrid(t, nil, 1, 1)
	released.Release()

	for _, tc := range []struct {
		name string
		g    *Grid
	}{
		{"nil", nil},
		{"released", released},
		{"empty", &Grid{Pix: []Pixel{}}},
		{"short", &Grid{Height: 2, Width: 2, Pix: make([]Pixel, 3)}},
		{"long", &Grid{Height: 1, Width: 2, Pix: make([]Pixel, 3)}},
		{"negative", &Grid{Height: -2, Width: -2, Pix: make([]Pixel, 4)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.g.Valid(), ErrInvalidArgument)

			_, err := Copy(nil, tc.g)
			assert.ErrorIs(t, err, ErrInvalidArgument)

			calls := 0
			assert.NotPanics(t, func() {
				tc.g.Apply(func(_, _ int, p Pixel) Pixel { calls++; return p })
			})
			assert.Zero(t, calls)
		})
	}
}

func TestGrid_RowMajorIndexing(t *testing.T) {
	g, err := New(nil, 2, 3)
	require.NoError(t, err)

	g.Set(2, 1, Pixel{R: 9, G: 8, B: 7})
	assert.Equal(t, Pixel{R: 9, G: 8, B: 7}, g.Pix[1*3+2])
	assert.Equal(t, Pixel{R: 9, G: 8, B: 7}, g.At(2, 1))

	assert.Panics(t, func() { g.At(3, 0) })
	assert.Panics(t, func() { g.Set(0, 2, Pixel{}) })
}

func TestCopy_IsDeep(t *testing.T) {
	src := makeTestGrid(t, nil, 5, 7)

	dst, err := Copy(nil, src)
	require.NoError(t, err)
	assert.True(t, Equal(src, dst))

	dst.Set(0, 0, Pixel{R: 1, G: 2, B: 3})
	assert.NotEqual(t, src.At(0, 0), dst.At(0, 0), "copy must not alias the source buffer")
}

func TestCopy_RejectsReleased(t *testing.T) {
	_, err := Copy(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	g := makeTestGrid(t, nil, 1, 1)
	g.Release()
	_, err = Copy(nil, g)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCopy_AllocationFailureLeavesNothing(t *testing.T) {
	alloc := &CountingAllocator{FailAt: 2}
	src := makeTestGrid(t, alloc, 2, 2)

	dst, err := Copy(alloc, src)
	assert.Nil(t, dst)
	assert.True(t, errors.Is(err, ErrAllocation))

	src.Release()
	assert.Equal(t, 0, alloc.Live())
	assert.Equal(t, 1, alloc.Failures)
}

func TestRelease_Idempotent(t *testing.T) {
	var nilGrid *Grid
	assert.NotPanics(t, nilGrid.Release)

	alloc := &CountingAllocator{}
	g := makeTestGrid(t, alloc, 2, 2)
	g.Release()
	g.Release()

	assert.True(t, g.Released())
	assert.Equal(t, 1, alloc.Allocs)
	assert.Equal(t, 1, alloc.Releases)
	assert.Equal(t, 1, alloc.DoubleReleases)
	assert.Equal(t, 0, alloc.Live())
}

func TestRelease_HeapGrid(t *testing.T) {
	g := makeTestGrid(t, nil, 2, 2)
	g.Release()
	assert.True(t, g.Released())
	assert.NotPanics(t, g.Release)
}

func TestCountingAllocator_PropagatesInnerFailure(t *testing.T) {
	alloc := &CountingAllocator{Inner: HeapAllocator{MaxPixels: 1}}
	_, err := New(alloc, 2, 2)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.Equal(t, 0, alloc.Allocs)
	assert.Equal(t, 1, alloc.Failures)
}

func TestApply_VisitsRowMajor(t *testing.T) {
	g, err := New(nil, 2, 2)
	require.NoError(t, err)

	var order [][2]int
	g.Apply(func(x, y int, p Pixel) Pixel {
		order = append(order, [2]int{x, y})
		return p
	})
	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}, order)
}

func TestEqual(t *testing.T) {
	a := makeTestGrid(t, nil, 3, 3)
	b := makeTestGrid(t, nil, 3, 3)
	assert.True(t, Equal(a, b))

	c := makeTestGrid(t, nil, 1, 9)
	assert.False(t, Equal(a, c), "same pixel count, different shape")

	b.Set(1, 1, Pixel{R: 255})
	assert.False(t, Equal(a, b))

	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(a, nil))
}
