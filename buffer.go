package julia

import (
	"errors"
	"fmt"
)

// ErrCorruptBuffer is returned when a pixel is not one of the two verdict colors.
var ErrCorruptBuffer = errors.New("corrupt pixel buffer")

// BytesPerPixel is the size of one B,G,R triplet.
const BytesPerPixel = 3

// Buffer holds W*H pixels, row-major, each stored as B,G,R.
// Bounded pixels are red {0,0,255}, escaped ones white {255,255,255}.
type Buffer []byte

// NewBuffer allocates a zeroed buffer for a w x h grid.
func NewBuffer(w, h int) Buffer {
	return make(Buffer, w*h*BytesPerPixel)
}

func offset(w, i, j int) int {
	return BytesPerPixel * (j*w + i)
}

// Set stores the color of verdict v for pixel (i, j) of a buffer w pixels wide.
func (b Buffer) Set(w, i, j int, v Verdict) {
	k := offset(w, i, j)
	c := 255 * (1 - byte(v))
	b[k] = c
	b[k+1] = c
	b[k+2] = 255
}

// Verdict reads back the verdict of pixel (i, j).
func (b Buffer) Verdict(w, i, j int) Verdict {
	if b[offset(w, i, j)] == 0 {
		return Bounded
	}
	return Escaped
}

// Check verifies the buffer covers a w x h grid and that every triplet is
// either {255,255,255} or {0,0,255}.
func (b Buffer) Check(w, h int) error {
	if len(b) != w*h*BytesPerPixel {
		return fmt.Errorf("%w: length %d, want %d", ErrCorruptBuffer, len(b), w*h*BytesPerPixel)
	}
	for k := 0; k < len(b); k += BytesPerPixel {
		blue, green, red := b[k], b[k+1], b[k+2]
		if blue != green || red != 255 || (blue != 0 && blue != 255) {
			p := k / BytesPerPixel
			return fmt.Errorf("%w: pixel (%d,%d) = {%d,%d,%d}", ErrCorruptBuffer, p%w, p/w, blue, green, red)
		}
	}
	return nil
}

// Count returns the number of bounded pixels.
func (b Buffer) Count() (bounded int) {
	for k := 0; k < len(b); k += BytesPerPixel {
		if b[k] == 0 {
			bounded++
		}
	}
	return bounded
}
