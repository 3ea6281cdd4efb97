// Package transform implements the pixel-level algorithms applied to a
// decoded grid: bounded random perturbation and the channel-value histogram.
package transform

import (
	"fmt"
	"math"

	"github.com/svanichkin/hpdec/internal/pixgrid"
)

// MaxStrength is the largest strength whose offset range [-s, s] can be
// drawn without overflowing int.
const MaxStrength = (math.MaxInt - 1) / 2

// Rand is the random source used by Perturb. *math/rand/v2.Rand satisfies it.
type Rand interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
}

// Perturb returns a copy of src in which every channel of every pixel has
// been offset by an independent uniform integer in [-strength, strength]
// and clamped to [0,255]. src is never modified. strength 0 returns an
// exact copy without drawing from rng.
func Perturb(alloc pixgrid.Allocator, src *pixgrid.Grid, strength int, rng Rand) (*pixgrid.Grid, error) {
	if err := src.Valid(); err != nil {
		return nil, fmt.Errorf("perturb: %w", err)
	}
	if strength < 0 || strength > MaxStrength {
		return nil, fmt.Errorf("%w: strength %d", pixgrid.ErrInvalidArgument, strength)
	}
	if rng == nil && strength > 0 {
		return nil, fmt.Errorf("%w: nil random source", pixgrid.ErrInvalidArgument)
	}

	dst, err := pixgrid.Copy(alloc, src)
	if err != nil {
		return nil, err
	}
	if strength == 0 {
		return dst, nil
	}

	span := 2*strength + 1
	offset := func(c uint8) uint8 {
		return clamp(int(c) - strength + rng.IntN(span))
	}
	dst.Apply(func(_, _ int, p pixgrid.Pixel) pixgrid.Pixel {
		p.R = offset(p.R)
		p.G = offset(p.G)
		p.B = offset(p.B)
		return p
	})
	return dst, nil
}

// clamp limits v to [0,255].
func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
