package tga

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHeader(t *testing.T) {
	tests := []struct {
		w, h int
		want [HeaderSize]byte
	}{
		{1000, 1000, [HeaderSize]byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 232, 3, 232, 3, 24, 0}},
		{2, 3, [HeaderSize]byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 3, 0, 24, 0}},
		{256, 255, [HeaderSize]byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 255, 0, 24, 0}},
		{65535, 513, [HeaderSize]byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 255, 255, 1, 2, 24, 0}},
	}
	for _, tt := range tests {
		if got := Header(tt.w, tt.h); got != tt.want {
			t.Errorf("Header(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

func pixels(w, h int) []byte {
	pix := make([]byte, 3*w*h)
	for k := 0; k < len(pix); k += 3 {
		c := byte(255 * ((k / 3) % 2))
		pix[k], pix[k+1], pix[k+2] = c, c, 255
	}
	return pix
}

func TestEncode(t *testing.T) {
	const w, h = 7, 5
	pix := pixels(w, h)

	var buf bytes.Buffer
	if err := Encode(&buf, w, h, pix); err != nil {
		t.Fatalf("Encode() = %v", err)
	}
	out := buf.Bytes()
	if len(out) != HeaderSize+3*w*h {
		t.Fatalf("encoded %d bytes, want %d", len(out), HeaderSize+3*w*h)
	}
	hdr := Header(w, h)
	if !bytes.Equal(out[:HeaderSize], hdr[:]) {
		t.Errorf("header = %v, want %v", out[:HeaderSize], hdr)
	}
	if !bytes.Equal(out[HeaderSize:], pix) {
		t.Error("payload is not the pixel buffer verbatim")
	}

	gw, gh, gpix, err := Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Decode() = %v", err)
	}
	if gw != w || gh != h || !bytes.Equal(gpix, pix) {
		t.Errorf("Decode() = %dx%d, %d bytes; want %dx%d, %d bytes", gw, gh, len(gpix), w, h, len(pix))
	}
}

func TestEncode_SizeMismatch(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		n    int
	}{
		{"short", 4, 4, 47},
		{"long", 4, 4, 49},
		{"zero width", 0, 4, 0},
		{"too tall", 1, 70000, 210000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, tt.w, tt.h, make([]byte, tt.n)); !errors.Is(err, ErrSize) {
				t.Errorf("Encode() = %v, want ErrSize", err)
			}
			if buf.Len() != 0 {
				t.Errorf("Encode() wrote %d bytes on error", buf.Len())
			}
		})
	}
}

type failingWriter struct {
	after int
	n     int
}

var errDiskFull = errors.New("disk full")

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n+len(p) > f.after {
		return 0, errDiskFull
	}
	f.n += len(p)
	return len(p), nil
}

func TestEncode_WriteError(t *testing.T) {
	pix := pixels(3, 3)
	for _, after := range []int{0, HeaderSize} {
		if err := Encode(&failingWriter{after: after}, 3, 3, pix); !errors.Is(err, errDiskFull) {
			t.Errorf("Encode() failing after %d bytes = %v, want errDiskFull", after, err)
		}
	}
}

func TestWriteFile(t *testing.T) {
	const w, h = 9, 4
	pix := pixels(w, h)
	path := filepath.Join(t.TempDir(), "julia_set.tga")

	if err := WriteFile(path, w, h, pix); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != int64(HeaderSize+3*w*h) {
		t.Errorf("file size = %d, want %d", fi.Size(), HeaderSize+3*w*h)
	}

	gw, gh, gpix, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if gw != w || gh != h || !bytes.Equal(gpix, pix) {
		t.Errorf("ReadFile() = %dx%d, want %dx%d with the same pixels", gw, gh, w, h)
	}
}

func TestWriteFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := WriteFile(filepath.Join(dir, "missing", "x.tga"), 2, 2, pixels(2, 2)); err == nil {
		t.Error("WriteFile() into a missing directory = nil error")
	}
	if err := WriteFile(filepath.Join(dir, "x.tga"), 2, 2, pixels(3, 3)); !errors.Is(err, ErrSize) {
		t.Errorf("WriteFile() with wrong size = %v, want ErrSize", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	good := Header(2, 2)
	badType := good
	badType[2] = 10 // RLE true-color
	badDepth := good
	badDepth[16] = 32

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"short header", good[:10], nil},
		{"rle", append(badType[:], make([]byte, 12)...), ErrFormat},
		{"32 bit", append(badDepth[:], make([]byte, 16)...), ErrFormat},
		{"short payload", append(good[:], make([]byte, 11)...), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := Decode(bytes.NewReader(tt.in))
			if err == nil {
				t.Fatal("Decode() = nil error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Decode() = %v, want %v", err, tt.want)
			}
		})
	}
}
