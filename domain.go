package julia

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDomain is returned for domains the mapper or the file layout cannot represent.
var ErrInvalidDomain = errors.New("invalid domain")

// maxSide is the largest side the 16-bit TGA header can carry.
const maxSide = 65535

// Domain is the pixel grid and the rectangle of the complex plane it samples.
type Domain struct {
	Width, Height int
	Xl, Xr        float32 // left, right
	Yb, Yt        float32 // bottom, top
}

// DefaultDomain is 1000x1000 pixels over [-1.5,1.5]x[-1.5,1.5].
var DefaultDomain = Full.Domain(1000, 1000)

// Region within the complex plane, independent of the pixel grid
type Region struct {
	Xl, Xr float32
	Yb, Yt float32
}

// Domain samples the region with a w x h grid.
func (r Region) Domain(w, h int) Domain {
	return Domain{Width: w, Height: h, Xl: r.Xl, Xr: r.Xr, Yb: r.Yb, Yt: r.Yt}
}

// Landmarks of the c = -0.8+0.156i Julia set
var (
	// Full – the whole set, as plotted by default
	Full = Region{
		Xl: -1.5,
		Xr: 1.5,
		Yb: -1.5,
		Yt: 1.5,
	}

	// Core – the connected middle with the two main lobes
	Core = Region{
		Xl: -0.75,
		Xr: 0.75,
		Yb: -0.5,
		Yt: 0.5,
	}

	// Spiral – one of the tight spirals left of the centre
	Spiral = Region{
		Xl: -0.6,
		Xr: -0.2,
		Yb: -0.1,
		Yt: 0.3,
	}
)

// Regions maps region names accepted on the command line.
var Regions = map[string]Region{
	"full":   Full,
	"core":   Core,
	"spiral": Spiral,
}

// Validate reports domains that would divide by zero in Point or overflow the file header.
func (d Domain) Validate() error {
	if d.Width <= 1 || d.Height <= 1 {
		return fmt.Errorf("%w: %dx%d, both sides must be > 1", ErrInvalidDomain, d.Width, d.Height)
	}
	if d.Width > maxSide || d.Height > maxSide {
		return fmt.Errorf("%w: %dx%d, sides are limited to %d", ErrInvalidDomain, d.Width, d.Height, maxSide)
	}
	for _, v := range []float32{d.Xl, d.Xr, d.Yb, d.Yt} {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: bound %v is not finite", ErrInvalidDomain, v)
		}
	}
	return nil
}

// Pixels is the number of grid points.
func (d Domain) Pixels() int {
	return d.Width * d.Height
}

// Point maps pixel (i, j) to the complex plane by linear interpolation.
// (0, 0) lands on (Xl, Yb) and (Width-1, Height-1) on (Xr, Yt).
// The domain must be valid; Point does not check.
func (d Domain) Point(i, j int) (x, y float32) {
	return lerp(d.Width, i, d.Xl, d.Xr), lerp(d.Height, j, d.Yb, d.Yt)
}

// lerp places index k of n grid points on [lo, hi]. The end points are
// exactly lo and hi; the weighted sum alone can be off by one ulp there.
func lerp(n, k int, lo, hi float32) float32 {
	switch k {
	case 0:
		return lo
	case n - 1:
		return hi
	}
	return (float32(float32(n-1-k)*lo) + float32(float32(k)*hi)) / float32(n-1)
}

func (d Domain) String() string {
	return fmt.Sprintf("%dx%d [%g,%g]x[%g,%g]", d.Width, d.Height, d.Xl, d.Xr, d.Yb, d.Yt)
}
