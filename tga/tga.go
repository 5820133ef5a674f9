// Package tga writes and reads the uncompressed 24-bit true-color TGA layout:
// an 18-byte header followed by width*height B,G,R triplets, row-major,
// starting with pixel (0, 0).
package tga

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// HeaderSize is the length of the fixed header.
const HeaderSize = 18

var (
	ErrSize   = errors.New("tga: pixel data does not match dimensions")
	ErrFormat = errors.New("tga: unsupported header")
)

// no color map, uncompressed true-color image
var idHeader = [12]byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0}

// Header returns the 18 header bytes for a width x height image.
func Header(width, height int) [HeaderSize]byte {
	var h [HeaderSize]byte
	copy(h[:], idHeader[:])
	h[12] = byte(width % 256)
	h[13] = byte(width / 256)
	h[14] = byte(height % 256)
	h[15] = byte(height / 256)
	h[16] = 24 // bits per pixel
	h[17] = 0  // descriptor
	return h
}

// Encode writes the header and pix to w. pix must hold exactly width*height*3 bytes.
func Encode(w io.Writer, width, height int, pix []byte) error {
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return fmt.Errorf("%w: %dx%d", ErrSize, width, height)
	}
	if len(pix) != 3*width*height {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrSize, len(pix), width, height)
	}
	h := Header(width, height)
	if _, err := w.Write(h[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(pix); err != nil {
		return fmt.Errorf("write pixels: %w", err)
	}
	return nil
}

// WriteFile creates path and encodes the image into it. Errors from
// creating, writing, flushing and closing the file are all reported.
func WriteFile(path string, width, height int, pix []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Encode(bw, width, height, pix); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// Decode reads an image written by Encode.
func Decode(r io.Reader) (width, height int, pix []byte, err error) {
	var h [HeaderSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return 0, 0, nil, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(h[:12], idHeader[:]) || h[16] != 24 || h[17] != 0 {
		return 0, 0, nil, fmt.Errorf("%w: % x", ErrFormat, h)
	}
	width = int(h[12]) + 256*int(h[13])
	height = int(h[14]) + 256*int(h[15])

	pix = make([]byte, 3*width*height)
	if _, err := io.ReadFull(r, pix); err != nil {
		return 0, 0, nil, fmt.Errorf("read pixels: %w", err)
	}
	return width, height, pix, nil
}

// ReadFile decodes the image stored at path.
func ReadFile(path string) (width, height int, pix []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, nil, err
	}
	defer f.Close()
	return Decode(bufio.NewReader(f))
}
