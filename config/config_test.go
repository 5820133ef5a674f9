package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	julia "github.com/marben/julia_dist"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("juliaset", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	want := Config{
		Width: 1000, Height: 1000,
		Xl: -1.5, Xr: 1.5, Yb: -1.5, Yt: 1.5,
		OutputPath:  "julia_set.tga",
		Strategy:    "threaded",
		BandRows:    8,
		Processes:   1,
		Transport:   "ws",
		Coordinator: "127.0.0.1:0",
		Reduce:      "max",
	}
	if c != want {
		t.Errorf("Default() = %+v, want %+v", c, want)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}

	d, err := c.Domain()
	if err != nil {
		t.Fatal(err)
	}
	if d != julia.DefaultDomain {
		t.Errorf("Default().Domain() = %v, want %v", d, julia.DefaultDomain)
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvThreads, "")
	path := writeFile(t, "julia.yaml", `
width: 320
height: 200
region: spiral
outputPath: out/spiral.tga
strategy: distributed
processes: 4
transport: local
reduce: root
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.Width != 320 || c.Height != 200 || c.Region != "spiral" {
		t.Errorf("grid = %dx%d %q, want 320x200 spiral", c.Width, c.Height, c.Region)
	}
	if c.OutputPath != "out/spiral.tga" || c.Strategy != "distributed" || c.Processes != 4 {
		t.Errorf("Load() = %+v", c)
	}
	if c.Transport != "local" || c.Reduce != "root" {
		t.Errorf("transport/reduce = %s/%s, want local/root", c.Transport, c.Reduce)
	}
	// untouched keys keep their defaults
	if c.BandRows != 8 || c.Xl != -1.5 || c.Coordinator != "127.0.0.1:0" {
		t.Errorf("defaults lost: %+v", c)
	}

	d, err := c.Domain()
	if err != nil {
		t.Fatal(err)
	}
	if want := julia.Spiral.Domain(320, 200); d != want {
		t.Errorf("Domain() = %v, want %v", d, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file = nil error")
	}
	path := writeFile(t, "bad.yaml", "strategy: mpi\n")
	if _, err := Load(path); err == nil {
		t.Error("Load() with a strategy outside the options = nil error")
	}
}

func TestLoad_ThreadsFromEnv(t *testing.T) {
	t.Setenv(EnvThreads, "6")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if c.Threads != 6 {
		t.Errorf("Threads = %d, want 6", c.Threads)
	}

	t.Setenv(EnvThreads, "six")
	if _, err := Load(""); !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() with %s=six = %v, want ErrInvalid", EnvThreads, err)
	}
}

func TestParse(t *testing.T) {
	t.Setenv(EnvThreads, "3")
	path := writeFile(t, "julia.json", `{"width": 640, "height": 480, "threads": 2}`)

	c, err := Parse(newFlagSet(), []string{
		"-config", path,
		"-height=100",
		"--threads", "5",
		"-strategy", "distributed",
		"-processes", "3",
		"-output-path", "x.tga",
	})
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	switch {
	case c.Width != 640:
		t.Errorf("Width = %d, want 640 from the file", c.Width)
	case c.Height != 100:
		t.Errorf("Height = %d, want 100 from the flag", c.Height)
	case c.Threads != 5:
		t.Errorf("Threads = %d, want 5 from the flag", c.Threads)
	case c.Strategy != "distributed" || c.Processes != 3 || c.OutputPath != "x.tga":
		t.Errorf("Parse() = %+v", c)
	}

	e := c.Evaluator(nil)
	if e.Strategy != julia.Distributed || e.Workers != 5 || e.BandRows != 8 || e.Op == nil {
		t.Errorf("Evaluator() = %+v", e)
	}
}

func TestParse_EnvBeatsFile(t *testing.T) {
	t.Setenv(EnvThreads, "3")
	path := writeFile(t, "julia.json", `{"threads": 2}`)
	c, err := Parse(newFlagSet(), []string{"--config=" + path})
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if c.Threads != 3 {
		t.Errorf("Threads = %d, want 3 from %s", c.Threads, EnvThreads)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv(EnvThreads, "")
	tests := []struct {
		name string
		args []string
	}{
		{"width", []string{"-width", "1"}},
		{"height too large", []string{"-height", "70000"}},
		{"bound overflows float32", []string{"-xl", "-1e40"}},
		{"strategy", []string{"-strategy", "mpi"}},
		{"transport", []string{"-transport", "tcp"}},
		{"reduce", []string{"-reduce", "sum"}},
		{"region", []string{"-region", "seahorse"}},
		{"threads", []string{"-threads", "-2"}},
		{"band rows", []string{"-band-rows", "0"}},
		{"processes", []string{"-processes", "0"}},
		{"output", []string{"-output-path", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(newFlagSet(), tt.args); !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse(%v) = %v, want ErrInvalid", tt.args, err)
			}
		})
	}

	if _, err := Parse(newFlagSet(), []string{"-no-such-flag"}); err == nil {
		t.Error("Parse() with an unknown flag = nil error")
	}
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"-width", "5"}, ""},
		{[]string{"-config", "a.yaml"}, "a.yaml"},
		{[]string{"--config", "b.json", "-width", "5"}, "b.json"},
		{[]string{"-width", "5", "-config=c.yaml"}, "c.yaml"},
		{[]string{"--config=d.yaml"}, "d.yaml"},
		{[]string{"-config"}, ""},
		{[]string{"--", "-config", "e.yaml"}, ""},
		{[]string{"config", "f.yaml"}, ""},
	}
	for _, tt := range tests {
		if got := configPath(tt.args); got != tt.want {
			t.Errorf("configPath(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
